// Package notify delivers match alerts to job owners over SES email and SNS
// SMS and keeps an audit row per delivered alert.
package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"match-workers/internal/common/config"
	apperrors "match-workers/internal/common/errors"
	"match-workers/internal/common/logger"
	"match-workers/internal/matching/scorer"
	"match-workers/internal/models"
)

type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type Config struct {
	EmailEnabled bool
	SMSEnabled   bool
	FromEmail    string
	SenderID     string
	Timeout      time.Duration
}

func ConfigFrom(cfg config.NotificationConfig) Config {
	return Config{
		EmailEnabled: cfg.Email.Enabled,
		SMSEnabled:   cfg.SMS.Enabled,
		FromEmail:    cfg.Email.FromEmail,
		SenderID:     cfg.SMS.SenderID,
		Timeout:      config.GetDuration(cfg.Timeout),
	}
}

const (
	subjectTemplate = "New candidate match for {{jobTitle}}"
	bodyTemplate    = "Hello {{ownerName}}, {{candidateName}} scored {{score}} for your {{jobTitle}} vacancy. {{explanation}}."
	smsTemplate     = "{{candidateName}} matched your {{jobTitle}} vacancy ({{score}}%)."
)

const selectAlertContext = `
	SELECT c.user_id, c.name, COALESCE(c.email, ''), COALESCE(c.phone, ''),
	       j.title, COALESCE(cand.name, ''), COALESCE(m.criteria, '[]')
	FROM jobs j
	JOIN contacts c ON c.user_id = j.owner_id
	LEFT JOIN candidates cand ON cand.id = $2
	LEFT JOIN matches m ON m.job_id = j.id AND m.candidate_id = $2
	WHERE j.id = $1`

const insertAudit = `
	INSERT INTO match_notifications (id, candidate_id, job_id, recipient_id, score, channels, sent_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

// Notifier implements pipeline.Notifier.
type Notifier struct {
	cfg    Config
	db     *sql.DB
	ses    SESService
	sns    SNSService
	logger logger.Logger
	now    func() time.Time
}

func New(cfg Config, db *sql.DB, sesClient SESService, snsClient SNSService, log logger.Logger) *Notifier {
	return &Notifier{
		cfg:    cfg,
		db:     db,
		ses:    sesClient,
		sns:    snsClient,
		logger: log.WithFields(map[string]interface{}{"component": "notifier"}),
		now:    time.Now,
	}
}

type alertContext struct {
	owner         models.Contact
	jobTitle      string
	candidateName string
	criteria      []models.Criterion
}

// NotifyMatch alerts the job's owner. It succeeds when at least one enabled
// channel delivered; a channel failure after another succeeded is only logged
// so a retry cannot duplicate the delivered alert.
func (n *Notifier) NotifyMatch(ctx context.Context, candidateID, jobID string, score int) error {
	if n.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.cfg.Timeout)
		defer cancel()
	}

	ac, err := n.loadContext(ctx, candidateID, jobID)
	if err != nil {
		return err
	}

	data := map[string]interface{}{
		"ownerName":     ac.owner.Name,
		"candidateName": ac.candidateName,
		"jobTitle":      ac.jobTitle,
		"score":         score,
		"explanation":   scorer.Explain(scorer.Result{Score: score, Criteria: ac.criteria}),
	}
	if ac.candidateName == "" {
		data["candidateName"] = "A candidate"
	}

	var channels []string
	var failures []string

	if n.cfg.EmailEnabled && ac.owner.Email != "" {
		if err := n.sendEmail(ctx, ac.owner.Email, renderTemplate(subjectTemplate, data), renderTemplate(bodyTemplate, data)); err != nil {
			n.logger.Error("email send failed", map[string]interface{}{"error": err.Error(), "recipientId": ac.owner.UserID})
			failures = append(failures, "email: "+err.Error())
		} else {
			channels = append(channels, models.ChannelEmail)
		}
	}

	if n.cfg.SMSEnabled && ac.owner.Phone != "" {
		if err := n.sendSMS(ctx, ac.owner.Phone, renderTemplate(smsTemplate, data)); err != nil {
			n.logger.Error("SMS send failed", map[string]interface{}{"error": err.Error(), "recipientId": ac.owner.UserID})
			failures = append(failures, "sms: "+err.Error())
		} else {
			channels = append(channels, models.ChannelSMS)
		}
	}

	if len(channels) == 0 {
		if len(failures) > 0 {
			return apperrors.NewTransientNotifyError("aws", errors.New(strings.Join(failures, "; "))).WithPair(candidateID, jobID)
		}
		return apperrors.NewNotFoundError("contact channel", ac.owner.UserID).WithPair(candidateID, jobID)
	}

	n.audit(ctx, models.MatchNotification{
		ID:          uuid.New().String(),
		CandidateID: candidateID,
		JobID:       jobID,
		Score:       score,
		Channels:    channels,
		SentAt:      n.now().UTC().Format(time.RFC3339),
	}, ac.owner.UserID)
	return nil
}

func (n *Notifier) loadContext(ctx context.Context, candidateID, jobID string) (*alertContext, error) {
	var ac alertContext
	var criteria []byte
	err := n.db.QueryRowContext(ctx, selectAlertContext, jobID, candidateID).Scan(
		&ac.owner.UserID, &ac.owner.Name, &ac.owner.Email, &ac.owner.Phone,
		&ac.jobTitle, &ac.candidateName, &criteria,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("job owner contact", jobID).WithPair(candidateID, jobID)
		}
		return nil, apperrors.NewTransientNotifyError("contact lookup", err).WithPair(candidateID, jobID)
	}
	if err := json.Unmarshal(criteria, &ac.criteria); err != nil {
		ac.criteria = nil
	}
	return &ac, nil
}

func (n *Notifier) sendEmail(ctx context.Context, to, subject, body string) error {
	_, err := n.ses.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &sestypes.Destination{
			ToAddresses: []string{to},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(n.cfg.FromEmail),
	})
	return err
}

func (n *Notifier) sendSMS(ctx context.Context, to, message string) error {
	input := &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
	}
	if n.cfg.SenderID != "" {
		input.MessageAttributes = map[string]snstypes.MessageAttributeValue{
			"AWS.SNS.SMS.SenderID": {DataType: aws.String("String"), StringValue: aws.String(n.cfg.SenderID)},
		}
	}
	_, err := n.sns.Publish(ctx, input)
	return err
}

// audit failures are logged only; the alert has already been delivered.
func (n *Notifier) audit(ctx context.Context, rec models.MatchNotification, recipientID string) {
	_, err := n.db.ExecContext(ctx, insertAudit,
		rec.ID, rec.CandidateID, rec.JobID, recipientID, rec.Score, pq.Array(rec.Channels), rec.SentAt,
	)
	if err != nil {
		n.logger.Warn("failed to record notification audit", map[string]interface{}{
			"notificationId": rec.ID,
			"error":          err.Error(),
		})
	}
}

func renderTemplate(tmpl string, data map[string]interface{}) string {
	result := tmpl
	for k, v := range data {
		result = strings.ReplaceAll(result, "{{"+k+"}}", fmt.Sprint(v))
	}
	// Drop placeholders with no value.
	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		result = result[:start] + result[start+end+2:]
	}
	return result
}
