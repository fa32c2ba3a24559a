package dispatch

import (
	"context"
	"encoding/xml"

	"github.com/airis-sh/airis/shared"
	"github.com/nyaruka/phonenumbers"
	"github.com/pkg/errors"
	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

const (
	DEFAULT_REGION        = "US"
	DEFAULT_VOICE_MESSAGE = "This is an emergency alert. Someone you care for needs help. Please check your text messages."
)

// EmailSender is the part of a Dispatcher that sends email
type EmailSender interface {
	SendEmail(ctx context.Context, email, message string) error
	SendEmailBatch(ctx context.Context, emails []string, message string) error
}

// TwilioDispatcher places calls and texts through Twilio instead of the
// host's dialer. Email has no Twilio counterpart and is delegated.
type TwilioDispatcher struct {
	client *twilio.RestClient
	config shared.TwilioConfig
	email  EmailSender
}

type sayResponse struct {
	XMLName xml.Name `xml:"Response"`
	Say     string   `xml:"Say"`
}

func NewTwilioDispatcher(config shared.TwilioConfig, email EmailSender) *TwilioDispatcher {
	client := twilio.NewRestClientWithParams(twilio.RestClientParams{
		Username: config.AccountSid,
		Password: config.AuthToken,
	})

	if config.DefaultRegion == "" {
		config.DefaultRegion = DEFAULT_REGION
	}

	if config.VoiceMessage == "" {
		config.VoiceMessage = DEFAULT_VOICE_MESSAGE
	}

	return &TwilioDispatcher{client: client, config: config, email: email}
}

func (td *TwilioDispatcher) CallContact(ctx context.Context, phone string) error {
	to, err := toE164(phone, td.config.DefaultRegion)
	if err != nil {
		return err
	}

	twiml, err := xml.Marshal(&sayResponse{Say: td.config.VoiceMessage})
	if err != nil {
		return errors.Wrap(err, "CallContact")
	}

	params := &openapi.CreateCallParams{}
	params.SetTo(to)
	params.SetFrom(td.config.FromNumber)
	params.SetTwiml(string(twiml))

	logg.Infof("Calling emergency contact via twilio: %v", to)
	_, err = td.client.ApiV2010.CreateCall(params)
	if err != nil {
		return errors.Wrapf(ErrHandoffFailed, "twilio call: %v", err)
	}

	return nil
}

func (td *TwilioDispatcher) SendSMS(ctx context.Context, phone, message string) error {
	to, err := toE164(phone, td.config.DefaultRegion)
	if err != nil {
		return err
	}

	params := &openapi.CreateMessageParams{}
	if td.config.MessagingServiceSid != "" {
		params.SetMessagingServiceSid(td.config.MessagingServiceSid)
	} else {
		params.SetFrom(td.config.FromNumber)
	}
	params.SetTo(to)
	params.SetBody(message)

	logg.Infof("Sending SMS via twilio to: %v", to)
	resp, err := td.client.ApiV2010.CreateMessage(params)
	if err != nil {
		return errors.Wrapf(ErrHandoffFailed, "twilio sms: %v", err)
	}

	if resp.ErrorMessage != nil && *resp.ErrorMessage != "" {
		return errors.Wrapf(ErrHandoffFailed, "twilio sms: %v", *resp.ErrorMessage)
	}

	return nil
}

func (td *TwilioDispatcher) SendEmail(ctx context.Context, email, message string) error {
	return td.email.SendEmail(ctx, email, message)
}

func (td *TwilioDispatcher) SendEmailBatch(ctx context.Context, emails []string, message string) error {
	return td.email.SendEmailBatch(ctx, emails, message)
}

// toE164 formats a free-text phone number the way Twilio expects, numbers
// without a country code are read as 'region' numbers.
func toE164(phone, region string) (string, error) {
	number, err := phonenumbers.Parse(NormalizePhone(phone), region)
	if err != nil {
		return "", errors.Wrapf(ErrHandoffFailed, "invalid phone number %q: %v", phone, err)
	}

	if !phonenumbers.IsPossibleNumber(number) {
		return "", errors.Wrapf(ErrHandoffFailed, "impossible phone number %q", phone)
	}

	return phonenumbers.Format(number, phonenumbers.E164), nil
}
