//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/cucumber/godog"

	"github.com/jsamuelsen/quotekeeper/internal/adapters/http/dto"
)

// scenario is the state one feature scenario's steps share. With BASE_URL
// set the steps run against that deployment; otherwise every scenario
// starts its own service wired to a fake remote.
type scenario struct {
	t      *testing.T
	http   *http.Client
	base   string
	remote *fakeRemote

	status int
	body   []byte
}

func newScenario(t *testing.T) *scenario {
	return &scenario{t: t, http: &http.Client{Timeout: 10 * time.Second}}
}

func (s *scenario) external() bool { return os.Getenv("BASE_URL") != "" }

func (s *scenario) begin(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
	s.status, s.body = 0, nil

	if s.external() {
		s.base = os.Getenv("BASE_URL")
		return ctx, nil
	}

	s.remote = newFakeRemote(s.t)

	cfg := loadTestConfig(s.t, s.remote.URL)
	cfg.Sync.Enabled = true

	s.base = startApp(s.t, cfg).server.URL

	return ctx, nil
}

func (s *scenario) register(sc *godog.ScenarioContext) {
	sc.Before(s.begin)

	sc.Step(`^the service is running$`, s.serviceIsRunning)
	sc.Step(`^the remote offers posts titled:$`, s.remoteOffers)
	sc.Step(`^I request (GET|POST|PUT|DELETE) "([^"]*)"$`, func(method, path string) error {
		return s.send(method, path, "")
	})
	sc.Step(`^I request (POST|PUT) "([^"]*)" with body:$`, func(method, path string, doc *godog.DocString) error {
		return s.send(method, path, doc.Content)
	})
	sc.Step(`^the response status should be (\d+)$`, s.statusIs)
	sc.Step(`^the response should contain "([^"]*)"$`, s.bodyContains)
	sc.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, s.fieldIs)
	sc.Step(`^the quote list should be:$`, s.quotesAre)
}

func (s *scenario) serviceIsRunning() error {
	if err := s.send(http.MethodGet, "/-/live", ""); err != nil {
		return fmt.Errorf("service at %s is not reachable: %w", s.base, err)
	}

	return s.statusIs(http.StatusOK)
}

func (s *scenario) remoteOffers(table *godog.Table) error {
	if s.external() {
		return godog.ErrPending
	}

	var titles []string
	for _, row := range table.Rows[1:] {
		titles = append(titles, row.Cells[0].Value)
	}

	s.remote.mu.Lock()
	s.remote.titles = titles
	s.remote.mu.Unlock()

	return nil
}

// send performs one request and keeps its status and body for the
// following Then steps.
func (s *scenario) send(method, path, body string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, s.base+path, strings.NewReader(body))
	if err != nil {
		return err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	s.status = resp.StatusCode
	s.body, err = io.ReadAll(resp.Body)

	return err
}

func (s *scenario) statusIs(want int) error {
	if s.status != want {
		return fmt.Errorf("status %d, want %d: %s", s.status, want, s.body)
	}

	return nil
}

func (s *scenario) bodyContains(text string) error {
	if !strings.Contains(string(s.body), text) {
		return fmt.Errorf("body does not contain %q: %s", text, s.body)
	}

	return nil
}

// fieldIs compares a top-level JSON field by its fmt.Sprint form, so
// numbers and booleans are written in the feature as they print.
func (s *scenario) fieldIs(field, want string) error {
	var obj map[string]any
	if err := json.Unmarshal(s.body, &obj); err != nil {
		return fmt.Errorf("body is not a JSON object: %w", err)
	}

	got, ok := obj[field]
	if !ok {
		return fmt.Errorf("no field %q in %s", field, s.body)
	}

	if fmt.Sprint(got) != want {
		return fmt.Errorf("field %q is %v, want %q", field, got, want)
	}

	return nil
}

// quotesAre lists the store and checks it against a
// position | text | category table, in order.
func (s *scenario) quotesAre(table *godog.Table) error {
	if err := s.send(http.MethodGet, "/api/v1/quotes", ""); err != nil {
		return err
	}

	var list dto.ListResponse
	if err := json.Unmarshal(s.body, &list); err != nil {
		return fmt.Errorf("decoding quote list: %w", err)
	}

	rows := table.Rows[1:]

	var errs []error

	if len(rows) != len(list.Quotes) {
		errs = append(errs, fmt.Errorf("%d quotes, want %d", len(list.Quotes), len(rows)))
	}

	for i := range min(len(rows), len(list.Quotes)) {
		q, cells := list.Quotes[i], rows[i].Cells

		got := fmt.Sprintf("%d|%s|%s", q.Position, q.Text, q.Category)
		want := cells[0].Value + "|" + cells[1].Value + "|" + cells[2].Value

		if got != want {
			errs = append(errs, fmt.Errorf("row %d is %q, want %q", i, got, want))
		}
	}

	return errors.Join(errs...)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: func(sc *godog.ScenarioContext) { newScenario(t).register(sc) },
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"../features"},
			TestingT: t,
			Tags:     os.Getenv("GODOG_TAGS"),
		},
	}

	if suite.Run() != 0 {
		t.Fatal("feature scenarios failed")
	}
}
