package cli

import (
	"os"
	"strings"
	"testing"

	"github.com/pgporter/pgporter/internal/testutil"
)

// ansiAttr returns true if the string contains the given SGR attribute, either
// as a standalone sequence "\033[<n>m" or embedded in a combined sequence
// "\033[...;<n>m" / "\033[<n>;...m".
func ansiAttr(s, attr string) bool {
	return strings.Contains(s, "\033["+attr+"m") ||
		strings.Contains(s, "\033["+attr+";") ||
		strings.Contains(s, ";"+attr+"m") ||
		strings.Contains(s, ";"+attr+";")
}

func TestBold(t *testing.T) {
	r := bold("test", true)
	testutil.Contains(t, r, "test")
	testutil.True(t, ansiAttr(r, "1"), "expected bold (SGR 1) in bold output")
	testutil.Equal(t, "test", bold("test", false))
}

func TestDim(t *testing.T) {
	r := dim("test", true)
	testutil.Contains(t, r, "test")
	testutil.True(t, ansiAttr(r, "2"), "expected faint/dim (SGR 2) in dim output")
	testutil.Equal(t, "test", dim("test", false))
}

func TestCyan(t *testing.T) {
	r := cyan("test", true)
	testutil.Contains(t, r, "test")
	testutil.True(t, ansiAttr(r, "36"), "expected cyan foreground (SGR 36) in cyan output")
	testutil.Equal(t, "test", cyan("test", false))
}

func TestGreen(t *testing.T) {
	r := green("test", true)
	testutil.Contains(t, r, "test")
	testutil.True(t, ansiAttr(r, "32"), "expected green foreground (SGR 32) in green output")
	testutil.Equal(t, "test", green("test", false))
}

func TestBoldCyan(t *testing.T) {
	r := boldCyan("test", true)
	testutil.Contains(t, r, "test")
	testutil.True(t, ansiAttr(r, "1"), "expected bold (SGR 1) in boldCyan output")
	testutil.True(t, ansiAttr(r, "36"), "expected cyan foreground (SGR 36) in boldCyan output")
	testutil.Equal(t, "test", boldCyan("test", false))
}

func TestColorEnabledRespectsNO_COLOR(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	testutil.False(t, colorEnabled())
}

func TestColorEnabledNO_COLORNotSet(t *testing.T) {
	// When NO_COLOR is not set, colorEnabled depends on terminal detection.
	// In tests, stderr is not a terminal, so it returns false.
	// Use t.Setenv first to snapshot+restore, then unset for this test.
	t.Setenv("NO_COLOR", "placeholder")
	os.Unsetenv("NO_COLOR")
	testutil.False(t, colorEnabled())
}
