package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"schedcore/internal/domain/staff"
	"schedcore/internal/infra"
	"schedcore/internal/pkg/config"
)

// HTTPScheduleAPI is the concrete client for the staff/schedule directory.
// Payloads are decoded loosely (see RawWindow) because deployed directory
// versions are not shape-stable.
type HTTPScheduleAPI struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPScheduleAPI(cfg config.ProviderConfig) *HTTPScheduleAPI {
	return &HTTPScheduleAPI{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

type staffPayload struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	TimeZone string `json:"timezone"`
	Weight   int    `json:"weight"`
	// CooldownMinutes between consecutive assignments of this member.
	CooldownMinutes int  `json:"cooldown_minutes"`
	Active          bool `json:"active"`
	Skills          []struct {
		Label string `json:"label"`
		Level string `json:"level"`
	} `json:"skills"`
}

func (p staffPayload) toMember() staff.Member {
	m := staff.Member{
		ID:       p.ID,
		Name:     p.Name,
		TimeZone: p.TimeZone,
		Weight:   p.Weight,
		Cooldown: time.Duration(p.CooldownMinutes) * time.Minute,
		Active:   p.Active,
	}
	if m.Weight == 0 {
		m.Weight = 1
	}
	for _, sk := range p.Skills {
		m.Skills = append(m.Skills, staff.Skill{Label: sk.Label, Level: staff.SkillLevel(sk.Level)})
	}
	return m
}

func (a *HTTPScheduleAPI) get(ctx context.Context, path string, query url.Values, out any) error {
	u := a.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return infra.WrapRepoErr(infra.KindUnavailable, "failed to build provider request", err)
	}
	if a.apiKey != "" {
		req.Header.Set("X-Api-Key", a.apiKey)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return infra.WrapRepoErr(infra.KindUnavailable, "schedule provider unreachable", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return infra.WrapRepoErr(infra.KindNotFound, "provider resource not found", nil)
	case resp.StatusCode >= 400:
		return infra.WrapRepoErr(infra.KindUnavailable,
			fmt.Sprintf("schedule provider returned %d", resp.StatusCode), nil)
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return infra.WrapRepoErr(infra.KindUnavailable, "failed to decode provider response", err)
	}
	return nil
}

func (a *HTTPScheduleAPI) ListActiveStaff(ctx context.Context, skillFilter []string) ([]staff.Member, error) {
	q := url.Values{"active": {"true"}}
	if len(skillFilter) > 0 {
		q.Set("skills", strings.Join(skillFilter, ","))
	}
	var payload []staffPayload
	if err := a.get(ctx, "/staff", q, &payload); err != nil {
		return nil, err
	}
	members := make([]staff.Member, 0, len(payload))
	for _, p := range payload {
		if m := p.toMember(); m.Active {
			members = append(members, m)
		}
	}
	return members, nil
}

func (a *HTTPScheduleAPI) GetStaff(ctx context.Context, id int64) (*staff.Member, error) {
	var payload staffPayload
	if err := a.get(ctx, "/staff/"+strconv.FormatInt(id, 10), nil, &payload); err != nil {
		return nil, err
	}
	m := payload.toMember()
	return &m, nil
}

func (a *HTTPScheduleAPI) RangeWindows(ctx context.Context, staffID int64, from, to time.Time, loc *time.Location) ([]RawWindow, error) {
	if loc == nil {
		loc = time.UTC
	}
	q := url.Values{
		"from": {from.In(loc).Format(time.RFC3339)},
		"to":   {to.In(loc).Format(time.RFC3339)},
		"tz":   {loc.String()},
	}
	var payload []RawWindow
	if err := a.get(ctx, "/staff/"+strconv.FormatInt(staffID, 10)+"/windows", q, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (a *HTTPScheduleAPI) WeeklyTemplate(ctx context.Context, staffID int64) (WeeklyTemplate, error) {
	// Keys arrive as strings ("0".."6", 0=Sunday).
	var payload map[string][]RawTemplateSpan
	if err := a.get(ctx, "/staff/"+strconv.FormatInt(staffID, 10)+"/template", nil, &payload); err != nil {
		return nil, err
	}
	tpl := make(WeeklyTemplate, len(payload))
	for k, spans := range payload {
		day, err := strconv.Atoi(k)
		if err != nil || day < 0 || day > 6 {
			continue
		}
		tpl[day] = spans
	}
	return tpl, nil
}

func (a *HTTPScheduleAPI) Exceptions(ctx context.Context, staffID int64, from, to time.Time) ([]RawWindow, error) {
	q := url.Values{
		"from": {from.UTC().Format(time.RFC3339)},
		"to":   {to.UTC().Format(time.RFC3339)},
	}
	var payload []RawWindow
	if err := a.get(ctx, "/staff/"+strconv.FormatInt(staffID, 10)+"/exceptions", q, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}
