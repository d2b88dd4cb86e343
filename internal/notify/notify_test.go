package notify

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/pgporter/pgporter/internal/testutil"
)

func sampleSummary(ok bool) RunSummary {
	return RunSummary{
		Command:    "clone",
		Succeeded:  ok,
		Source:     "postgres://source-host/app",
		Target:     "postgres://target-host/app",
		Tables:     4,
		Rows:       1200,
		Duration:   2300 * time.Millisecond,
		FinishedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSubject(t *testing.T) {
	t.Parallel()

	testutil.Equal(t, "[pgporter] clone succeeded", sampleSummary(true).Subject())
	testutil.Equal(t, "[pgporter] clone failed", sampleSummary(false).Subject())
}

func TestBody(t *testing.T) {
	t.Parallel()

	s := sampleSummary(false)
	s.Errors = []string{"copying table posts: connection reset"}
	body := s.Body()

	testutil.Contains(t, body, "Command:  clone")
	testutil.Contains(t, body, "Source:   postgres://source-host/app")
	testutil.Contains(t, body, "Rows:     1200")
	testutil.Contains(t, body, "Errors (1):")
	testutil.Contains(t, body, "copying table posts: connection reset")
}

func TestBodyOmitsEmptySections(t *testing.T) {
	t.Parallel()

	s := sampleSummary(true)
	s.Target = ""
	body := s.Body()
	testutil.NotContains(t, body, "Target:")
	testutil.NotContains(t, body, "Errors")
}

func TestLogNotifier(t *testing.T) {
	t.Parallel()

	n := NewLogNotifier(testutil.DiscardLogger())
	testutil.NoError(t, n.Send(context.Background(), sampleSummary(true)))
}

func TestSMTPNotifierRequiresConfig(t *testing.T) {
	t.Parallel()

	n := NewSMTPNotifier(SMTPConfig{To: []string{"ops@example.com"}})
	err := n.Send(context.Background(), sampleSummary(true))
	testutil.ErrorContains(t, err, "smtp host not configured")

	n = NewSMTPNotifier(SMTPConfig{Host: "smtp.example.com"})
	err = n.Send(context.Background(), sampleSummary(true))
	testutil.ErrorContains(t, err, "no smtp recipients")
}

type fakeSNS struct {
	input *sns.PublishInput
	err   error
}

func (f *fakeSNS) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	id := "msg-1"
	return &sns.PublishOutput{MessageId: &id}, nil
}

func TestSNSNotifierPublish(t *testing.T) {
	t.Parallel()

	fake := &fakeSNS{}
	n := &SNSNotifier{client: fake, topicARN: "arn:aws:sns:us-east-1:123:pgporter"}

	testutil.NoError(t, n.Send(context.Background(), sampleSummary(true)))
	testutil.NotNil(t, fake.input)
	testutil.Equal(t, "arn:aws:sns:us-east-1:123:pgporter", *fake.input.TopicArn)
	testutil.Equal(t, "[pgporter] clone succeeded", *fake.input.Subject)
	testutil.Contains(t, *fake.input.Message, "Tables:   4")
}

func TestSNSNotifierPublishError(t *testing.T) {
	t.Parallel()

	fake := &fakeSNS{err: fmt.Errorf("throttled")}
	n := &SNSNotifier{client: fake, topicARN: "arn:aws:sns:us-east-1:123:pgporter"}

	err := n.Send(context.Background(), sampleSummary(true))
	testutil.ErrorContains(t, err, "publishing to SNS")
}
