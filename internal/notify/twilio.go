package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultTwilioURL = "https://api.twilio.com/2010-04-01"
	maxSMSLength     = 1600
)

// Twilio sends alerts as SMS through the Messages resource.
// Destinations are 10-digit US numbers; the +1 prefix is added here.
type Twilio struct {
	AccountSID string
	AuthToken  string
	From       string
	BaseURL    string
	Client     *http.Client
}

func NewTwilio(accountSID, authToken, from, baseURL string) *Twilio {
	if accountSID == "" || authToken == "" || from == "" {
		return nil
	}
	if baseURL == "" {
		baseURL = DefaultTwilioURL
	}
	return &Twilio{
		AccountSID: accountSID,
		AuthToken:  authToken,
		From:       from,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *Twilio) Send(ctx context.Context, destination, message string) error {
	if t == nil {
		return errors.New("twilio disabled")
	}
	phone := strings.TrimSpace(destination)
	if phone == "" {
		return errors.New("twilio: empty destination")
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return errors.New("twilio: empty message")
	}
	message = truncateRunes(message, maxSMSLength)

	form := url.Values{}
	form.Set("From", t.From)
	form.Set("To", "+1"+phone)
	form.Set("Body", message)

	endpoint := t.BaseURL + "/Accounts/" + url.PathEscape(t.AccountSID) + "/Messages.json"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(t.AccountSID, t.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("twilio: status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return nil
}

// truncateRunes keeps at most n characters of s without splitting one.
func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
