package collector

import (
	"context"
	"sync"
	"time"

	"VolumeSentinel/internal/model"
	"VolumeSentinel/internal/tradedate"
)

// MockResponse is one scripted reply of MockFetcher.
type MockResponse struct {
	Bars []model.Bar
	Err  error
}

// MockCall records one Fetch invocation.
type MockCall struct {
	Code  string
	Start string
	End   string
}

// MockFetcher replays scripted responses for development and testing.
// Codes in Failures always fail with their error. Otherwise Responses are
// consumed in order; once exhausted, Default is returned, and when Default is
// nil the bars of Data within the requested range are served.
type MockFetcher struct {
	Responses []MockResponse
	Default   *MockResponse
	Data      map[string][]model.Bar
	Failures  map[string]error

	mu    sync.Mutex
	calls []MockCall
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) Fetch(_ context.Context, code string, start, end time.Time) ([]model.Bar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, MockCall{
		Code:  code,
		Start: start.Format(tradedate.Layout),
		End:   end.Format(tradedate.Layout),
	})
	if err, ok := m.Failures[code]; ok {
		return nil, err
	}
	if len(m.Responses) > 0 {
		r := m.Responses[0]
		m.Responses = m.Responses[1:]
		return r.Bars, r.Err
	}
	if m.Default != nil {
		return m.Default.Bars, m.Default.Err
	}
	from, to := start.Format(tradedate.Layout), end.Format(tradedate.Layout)
	var out []model.Bar
	for _, b := range m.Data[code] {
		if b.Date >= from && b.Date <= to {
			out = append(out, b)
		}
	}
	return out, nil
}

// Calls returns a copy of the recorded invocations.
func (m *MockFetcher) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}
