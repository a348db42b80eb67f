// Package untis talks to the school's WebUntis JSON-RPC endpoint. The
// session cookie is reused across calls and re-established transparently
// when the server drops it.
package untis

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/pquerna/otp/totp"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/planwerk/stundenplan-api/internal/models"
	"github.com/planwerk/stundenplan-api/pkg/config"
	appErrors "github.com/planwerk/stundenplan-api/pkg/errors"
)

// sessionLifetime is how long a JSESSIONID is trusted before a fresh
// authenticate call. The server itself revokes idle sessions after ~10min.
const sessionLifetime = 12 * time.Minute

const rpcPath = "/WebUntis/jsonrpc.do"

// errNotAuthenticated is WebUntis error code for a stale session.
const errNotAuthenticated = -8520

// Client is a WebUntis JSON-RPC client bound to one school and element.
type Client struct {
	cfg    config.UntisConfig
	http   *resty.Client
	logger *zap.Logger

	mu             sync.Mutex
	sessionID      string
	sessionRefresh time.Time
}

// NewClient constructs a client. The session is established lazily on the
// first request.
func NewClient(cfg config.UntisConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", "stundenplan-api")
	return &Client{cfg: cfg, http: httpClient, logger: logger}
}

// FetchWeek returns the element's lessons for the week starting at the given
// ISO Monday.
func (c *Client) FetchWeek(ctx context.Context, weekStart string) ([]models.Lesson, error) {
	start, err := time.Parse("2006-01-02", weekStart)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid week start date")
	}
	end := start.AddDate(0, 0, 4)

	params := map[string]interface{}{
		"options": map[string]interface{}{
			"id": time.Now().UnixMilli(),
			"element": map[string]interface{}{
				"id":   c.cfg.ElementID,
				"type": c.cfg.ElementType,
			},
			"startDate":     untisDateInt(start),
			"endDate":       untisDateInt(end),
			"showLsText":    true,
			"showSubstText": true,
			"showInfo":      true,
			"subjectFields": []string{"id", "name", "longname"},
			"teacherFields": []string{"id", "name", "longname"},
			"roomFields":    []string{"id", "name", "longname"},
		},
	}

	result, err := c.rpc(ctx, "getTimetable", params)
	if err != nil {
		return nil, err
	}

	lessons := make([]models.Lesson, 0, len(result.Array()))
	for _, raw := range result.Array() {
		lessons = append(lessons, lessonFromRPC(raw))
	}
	return lessons, nil
}

// FetchHolidays returns the school's published vacation periods.
func (c *Client) FetchHolidays(ctx context.Context) ([]models.VacationPeriod, error) {
	result, err := c.rpc(ctx, "getHolidays", map[string]interface{}{})
	if err != nil {
		return nil, err
	}

	out := make([]models.VacationPeriod, 0, len(result.Array()))
	for _, raw := range result.Array() {
		title := raw.Get("longName").String()
		if title == "" {
			title = raw.Get("name").String()
		}
		v := models.VacationPeriod{
			ID:        raw.Get("id").String(),
			Title:     title,
			StartDate: untisDateString(raw.Get("startDate").Int()),
			EndDate:   untisDateString(raw.Get("endDate").Int()),
		}
		if v.Normalise() {
			out = append(out, v)
		}
	}
	return out, nil
}

// FetchSubjects returns the subject short names known upstream, useful for
// building the course catalog when no mapping file is maintained.
func (c *Client) FetchSubjects(ctx context.Context) ([]string, error) {
	result, err := c.rpc(ctx, "getSubjects", map[string]interface{}{})
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(result.Array()))
	for _, raw := range result.Array() {
		if name := raw.Get("name").String(); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

// rpc performs one JSON-RPC call with the cached session, retrying on
// transient failures and re-authenticating once on a stale session.
func (c *Client) rpc(ctx context.Context, method string, params interface{}) (gjson.Result, error) {
	session, err := c.ensureSession(ctx)
	if err != nil {
		return gjson.Result{}, err
	}

	body, err := c.post(ctx, method, params, session)
	if err != nil {
		return gjson.Result{}, err
	}

	if code := gjson.GetBytes(body, "error.code"); code.Exists() {
		if code.Int() == errNotAuthenticated {
			c.invalidateSession()
			session, err = c.ensureSession(ctx)
			if err != nil {
				return gjson.Result{}, err
			}
			body, err = c.post(ctx, method, params, session)
			if err != nil {
				return gjson.Result{}, err
			}
		}
	}

	if code := gjson.GetBytes(body, "error.code"); code.Exists() {
		msg := gjson.GetBytes(body, "error.message").String()
		return gjson.Result{}, appErrors.Clone(appErrors.ErrUpstream, fmt.Sprintf("untis %s: %s", method, msg))
	}

	result := gjson.GetBytes(body, "result")
	if !result.Exists() {
		return gjson.Result{}, appErrors.Clone(appErrors.ErrUpstream, fmt.Sprintf("untis %s: response missing result", method))
	}
	return result, nil
}

func (c *Client) post(ctx context.Context, method string, params interface{}, session string) ([]byte, error) {
	var body []byte
	operation := func() error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParam("school", c.cfg.School).
			SetHeader("Cookie", "JSESSIONID="+session).
			SetBody(map[string]interface{}{
				"id":      "stundenplan",
				"method":  method,
				"params":  params,
				"jsonrpc": "2.0",
			}).
			Post(rpcPath)
		if err != nil {
			return err
		}
		if resp.IsError() {
			return fmt.Errorf("untis %s: status %d", method, resp.StatusCode())
		}
		body = resp.Body()
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "untis request failed")
	}
	return body, nil
}

// ensureSession returns a live session id, authenticating when the cached
// one is missing or older than sessionLifetime.
func (c *Client) ensureSession(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionID != "" && time.Since(c.sessionRefresh) < sessionLifetime {
		return c.sessionID, nil
	}

	password := c.cfg.Password
	if c.cfg.TOTPSecret != "" {
		code, err := totp.GenerateCode(c.cfg.TOTPSecret, time.Now())
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "generating untis otp")
		}
		password = code
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("school", c.cfg.School).
		SetBody(map[string]interface{}{
			"id":     "stundenplan",
			"method": "authenticate",
			"params": map[string]string{
				"user":     c.cfg.Username,
				"password": password,
				"client":   "stundenplan-api",
			},
			"jsonrpc": "2.0",
		}).
		Post(rpcPath)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "untis authenticate failed")
	}
	if resp.IsError() {
		return "", appErrors.Clone(appErrors.ErrUpstream, fmt.Sprintf("untis authenticate: status %d", resp.StatusCode()))
	}

	session := gjson.GetBytes(resp.Body(), "result.sessionId").String()
	if session == "" {
		msg := gjson.GetBytes(resp.Body(), "error.message").String()
		return "", appErrors.Clone(appErrors.ErrUpstream, fmt.Sprintf("untis authenticate rejected: %s", msg))
	}

	c.sessionID = session
	c.sessionRefresh = time.Now()
	c.logger.Debug("untis session established")
	return session, nil
}

func (c *Client) invalidateSession() {
	c.mu.Lock()
	c.sessionID = ""
	c.mu.Unlock()
}

// lessonFromRPC maps one getTimetable element onto the internal shape.
func lessonFromRPC(raw gjson.Result) models.Lesson {
	subjectName := raw.Get("su.0.name").String()
	subjectLong := raw.Get("su.0.longname").String()

	l := models.Lesson{
		ID:              raw.Get("id").String(),
		Date:            untisDateString(raw.Get("date").Int()),
		Start:           untisTimeString(raw.Get("startTime").Int()),
		End:             untisTimeString(raw.Get("endTime").Int()),
		Subject:         subjectLong,
		SubjectOriginal: subjectName,
		Teacher:         raw.Get("te.0.longname").String(),
		Room:            raw.Get("ro.0.name").String(),
		Note:            strings.TrimSpace(raw.Get("lstext").String()),
		Status:          models.StatusNormal,
	}
	if l.Subject == "" {
		l.Subject = subjectName
	}
	if l.Teacher == "" {
		l.Teacher = raw.Get("te.0.name").String()
	}

	// Slots without a subject are special events (excursions, assemblies);
	// their free text becomes the display subject.
	if subjectName == "" {
		l.Special = true
		if l.Note != "" {
			l.Subject = l.Note
		} else if activity := raw.Get("activityType").String(); activity != "" {
			l.Subject = activity
		}
	}

	substText := strings.TrimSpace(raw.Get("substText").String())
	l.Status = lessonStatus(raw, substText, l.Note)
	if substText != "" && l.Note == "" {
		l.Note = substText
	}

	return l
}

// lessonStatus derives the deviation status from the element's code,
// cellState, cancelled flag and the free texts, in that order. Keyword
// matching covers the German notice variants the upstream emits.
func lessonStatus(raw gjson.Result, substText, note string) models.LessonStatus {
	code := strings.ToLower(raw.Get("code").String())
	cellState := strings.ToLower(raw.Get("cellState").String())
	subst := strings.ToLower(substText)
	text := strings.ToLower(note)

	switch code {
	case "cancelled", "canceled", "cancel":
		return models.StatusCancelled
	}
	switch cellState {
	case "cancelled", "canceled":
		return models.StatusCancelled
	}
	if raw.Get("cancelled").Bool() {
		return models.StatusCancelled
	}
	if strings.Contains(subst, "entf") || strings.Contains(subst, "cancel") {
		return models.StatusCancelled
	}
	if code == "irregular" || strings.Contains(subst, "vert") || strings.Contains(text, "vertret") {
		return models.StatusSubstitution
	}
	for _, kw := range []string{"änder", "aender"} {
		if strings.Contains(subst, kw) || strings.Contains(text, kw) {
			return models.StatusChanged
		}
	}
	if strings.Contains(text, "entfall") || strings.Contains(text, "cancel") {
		return models.StatusCancelled
	}
	if subst != "" {
		return models.StatusChanged
	}
	return models.StatusNormal
}

// untisDateInt renders a date as the yyyymmdd integer WebUntis expects.
func untisDateInt(t time.Time) int {
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}

// untisDateString converts a yyyymmdd integer to an ISO date.
func untisDateString(v int64) string {
	if v <= 0 {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", v/10000, (v/100)%100, v%100)
}

// untisTimeString converts an HMM/HHMM integer to "HH:MM".
func untisTimeString(v int64) string {
	if v < 0 {
		return ""
	}
	return fmt.Sprintf("%02d:%02d", v/100, v%100)
}
