package handlers_test

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/planora-dev/planora/internal/types"
)

type dashboardPayload struct {
	Projects []struct {
		ID            uint    `json:"id"`
		Name          string  `json:"name"`
		Status        string  `json:"status"`
		MemberCount   int     `json:"member_count"`
		Month         int     `json:"month"`
		Duration      int     `json:"duration"`
		Overdue       bool    `json:"overdue"`
		DaysRemaining *int    `json:"days_remaining"`
		EndDate       *string `json:"end_date"`
	} `json:"projects"`
	StatusCounts struct {
		Total      int `json:"total"`
		Completed  int `json:"completed"`
		InProgress int `json:"inProgress"`
		Pending    int `json:"pending"`
	} `json:"statusCounts"`
	ChartData struct {
		Labels   []string `json:"labels"`
		Datasets []int    `json:"datasets"`
	} `json:"chartData"`
}

func getDashboard(t *testing.T, app *testApp, token, query string) dashboardPayload {
	t.Helper()

	w := app.request(t, http.MethodGet, "/api/dashboard"+query, nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("dashboard status = %d, body %s", w.Code, w.Body.String())
	}

	var payload dashboardPayload
	if err := jsonUnmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode dashboard: %v", err)
	}
	return payload
}

func TestDashboardAggregation(t *testing.T) {
	app := newTestApp(t, nil)
	dev, token := seedUser(t, "Dev", "dev@example.com", types.RoleDeveloper)

	// Finished long ago: overdue, negative days remaining.
	done := seedProject(t, "Done", types.StatusCompleted, "2024-01-10", "2024-02-10")
	// Open-ended: duration keeps growing, no days remaining.
	open := seedProject(t, "Open", types.StatusInProgress, "2024-03-05", "")
	// Ends well in the future.
	future := fmt.Sprintf("%d-12-31", time.Now().Year()+1)
	seedProject(t, "Pending", types.StatusPending, "2024-06-20", future)

	seedMembership(t, done.ID, dev.ID)
	seedMembership(t, open.ID, dev.ID)

	payload := getDashboard(t, app, token, "")

	if payload.StatusCounts.Total != 3 ||
		payload.StatusCounts.Completed != 1 ||
		payload.StatusCounts.InProgress != 1 ||
		payload.StatusCounts.Pending != 1 {
		t.Errorf("statusCounts = %+v", payload.StatusCounts)
	}

	if len(payload.ChartData.Labels) != 12 || len(payload.ChartData.Datasets) != 12 {
		t.Fatalf("chart buckets = %d labels / %d datasets, want 12/12", len(payload.ChartData.Labels), len(payload.ChartData.Datasets))
	}
	// Start months: January, March, June.
	if payload.ChartData.Datasets[0] != 1 || payload.ChartData.Datasets[2] != 1 || payload.ChartData.Datasets[5] != 1 {
		t.Errorf("month histogram = %v", payload.ChartData.Datasets)
	}

	byName := map[string]int{}
	for i, p := range payload.Projects {
		byName[p.Name] = i
	}

	doneRow := payload.Projects[byName["Done"]]
	if !doneRow.Overdue {
		t.Error("finished project not marked overdue")
	}
	if doneRow.Duration != 31 {
		t.Errorf("done duration = %d, want 31", doneRow.Duration)
	}
	if doneRow.DaysRemaining == nil || *doneRow.DaysRemaining >= 0 {
		t.Errorf("done days_remaining = %v, want negative", doneRow.DaysRemaining)
	}
	if doneRow.MemberCount != 1 {
		t.Errorf("done member_count = %d, want 1", doneRow.MemberCount)
	}

	openRow := payload.Projects[byName["Open"]]
	if openRow.Overdue {
		t.Error("open-ended project marked overdue")
	}
	if openRow.DaysRemaining != nil {
		t.Errorf("open days_remaining = %v, want null", openRow.DaysRemaining)
	}
	if openRow.EndDate != nil {
		t.Errorf("open end_date = %v, want null", openRow.EndDate)
	}
	if openRow.Duration <= 0 {
		t.Errorf("open duration = %d, want positive", openRow.Duration)
	}

	pendingRow := payload.Projects[byName["Pending"]]
	if pendingRow.Overdue {
		t.Error("future project marked overdue")
	}
	if pendingRow.DaysRemaining == nil || *pendingRow.DaysRemaining <= 0 {
		t.Errorf("pending days_remaining = %v, want positive", pendingRow.DaysRemaining)
	}
	if pendingRow.MemberCount != 0 {
		t.Errorf("pending member_count = %d, want 0", pendingRow.MemberCount)
	}
}

func TestDashboardUserFilter(t *testing.T) {
	app := newTestApp(t, nil)
	dev, token := seedUser(t, "Dev", "dev@example.com", types.RoleDeveloper)

	mine := seedProject(t, "Mine", types.StatusPending, "2024-01-01", "")
	seedProject(t, "Other", types.StatusPending, "2024-01-01", "")
	seedMembership(t, mine.ID, dev.ID)

	payload := getDashboard(t, app, token, fmt.Sprintf("?userId=%d", dev.ID))

	if len(payload.Projects) != 1 || payload.Projects[0].Name != "Mine" {
		t.Errorf("filtered projects = %+v, want only Mine", payload.Projects)
	}
}

func TestDashboardDateFilter(t *testing.T) {
	app := newTestApp(t, nil)
	_, token := seedUser(t, "Dev", "dev@example.com", types.RoleDeveloper)

	seedProject(t, "Active", types.StatusInProgress, "2024-01-01", "2024-06-30")
	seedProject(t, "OpenEnded", types.StatusInProgress, "2024-02-01", "")
	seedProject(t, "TooEarly", types.StatusCompleted, "2023-01-01", "2023-02-01")
	seedProject(t, "TooLate", types.StatusPending, "2024-09-01", "")

	payload := getDashboard(t, app, token, "?dateFilter=2024-03-15")

	names := map[string]bool{}
	for _, p := range payload.Projects {
		names[p.Name] = true
	}

	if !names["Active"] || !names["OpenEnded"] {
		t.Errorf("projects active on the filter date missing: %v", names)
	}
	if names["TooEarly"] || names["TooLate"] {
		t.Errorf("projects outside the filter date included: %v", names)
	}
}
