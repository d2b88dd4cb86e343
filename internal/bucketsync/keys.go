package bucketsync

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// serviceKeyClaims is the claim set platform service keys carry.
type serviceKeyClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// InspectServiceKey examines an access key that looks like a JWT and returns
// warnings when it is not a service-role key or has expired. The signature
// is deliberately not verified; this is inspection, not authentication.
// Keys that are not JWTs (plain S3 access keys) produce no warnings.
func InspectServiceKey(label, key string) []string {
	if strings.Count(key, ".") != 2 {
		return nil
	}

	var claims serviceKeyClaims
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	if _, _, err := parser.ParseUnverified(key, &claims); err != nil {
		return nil
	}

	var warnings []string
	if claims.Role != "" && claims.Role != "service_role" {
		warnings = append(warnings,
			fmt.Sprintf("%s key has role %q, not service_role; bucket listing may be denied", label, claims.Role))
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		warnings = append(warnings,
			fmt.Sprintf("%s key expired at %s", label, claims.ExpiresAt.Format(time.RFC3339)))
	}
	return warnings
}
