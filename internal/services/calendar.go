package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const defaultCalendarBaseURL = "https://www.googleapis.com/calendar/v3"

type EventDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone,omitempty"`
}

type EventAttendee struct {
	Email string `json:"email"`
}

type CalendarEvent struct {
	Summary     string          `json:"summary"`
	Description string          `json:"description"`
	Location    string          `json:"location"`
	Start       EventDateTime   `json:"start"`
	End         EventDateTime   `json:"end"`
	Attendees   []EventAttendee `json:"attendees"`
}

// UpstreamError carries the calendar API's status code and raw error body
// so handlers can propagate both to the client.
type UpstreamError struct {
	StatusCode int
	Body       json.RawMessage
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("calendar API returned status %d", e.StatusCode)
}

// CalendarService creates events on an external calendar, exchanging a
// long-lived refresh token for short-lived access tokens as needed. The
// oauth2 token source caches the access token until it expires.
type CalendarService struct {
	BaseURL    string
	CalendarID string
	TimeZone   string

	tokenSource oauth2.TokenSource
	client      *http.Client
}

func NewCalendarService(clientID, clientSecret, refreshToken, calendarID, timeZone string) *CalendarService {
	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
	}

	ts := conf.TokenSource(context.Background(), &oauth2.Token{RefreshToken: refreshToken})

	return &CalendarService{
		BaseURL:     defaultCalendarBaseURL,
		CalendarID:  calendarID,
		TimeZone:    timeZone,
		tokenSource: ts,
		client:      http.DefaultClient,
	}
}

// NewCalendarServiceWithTokenSource wires an explicit token source and
// client. Tests use it to point at stub servers.
func NewCalendarServiceWithTokenSource(baseURL, calendarID, timeZone string, ts oauth2.TokenSource, client *http.Client) *CalendarService {
	if client == nil {
		client = http.DefaultClient
	}
	return &CalendarService{
		BaseURL:     baseURL,
		CalendarID:  calendarID,
		TimeZone:    timeZone,
		tokenSource: ts,
		client:      client,
	}
}

// CreateEvent posts the event to the calendar API and returns the created
// event representation. A non-2xx upstream response surfaces as an
// *UpstreamError.
func (s *CalendarService) CreateEvent(ctx context.Context, event CalendarEvent) (json.RawMessage, error) {
	token, err := s.tokenSource.Token()
	if err != nil {
		return nil, fmt.Errorf("fetch access token: %w", err)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}

	endpoint := fmt.Sprintf("%s/calendars/%s/events", s.BaseURL, url.PathEscape(s.CalendarID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post event: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: body}
	}

	return body, nil
}
