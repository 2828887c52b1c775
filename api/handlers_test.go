package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-ledger/api"
	"github.com/warp/attendance-ledger/attendance"
	"github.com/warp/attendance-ledger/config"
	"github.com/warp/attendance-ledger/logger"
	"github.com/warp/attendance-ledger/store/files"
	"github.com/warp/attendance-ledger/store/sqlite"
	"github.com/warp/attendance-ledger/timeoff"
)

const dayExport = `No.,Name,AC-No.,Time,State
1,Sara Adel,17,10/03/2024 8:10 AM,C/In
2,Sara Adel,17,10/03/2024 5:00 PM,C/Out
`

const shortDayExport = `Name,AC-No.,Time,State
Sara Adel,17,10/03/2024 9:00,C/In
Sara Adel,17,10/03/2024 16:30,C/Out
`

// =============================================================================
// TEST HELPERS
// =============================================================================

type testServer struct {
	router  *chi.Mux
	handler *api.Handler
	store   *sqlite.Store
	dir     *files.Dir
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := config.Defaults()
	cfg.Attendance.Timezone = "UTC"

	dir := files.NewDir(t.TempDir())
	h, err := api.NewHandler(store, dir, cfg, logger.Nop())
	require.NoError(t, err)

	return &testServer{router: api.NewRouter(h, nil), handler: h, store: store, dir: dir}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) upload(t *testing.T, content string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("file", "export.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/sheets/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) seedSara(t *testing.T) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/employees", map[string]any{
		"id":         "emp-1",
		"name":       "Sara Adel",
		"machine_id": "17",
		"subsidiary": "1",
		"hire_date":  "2015-04-01",
		"birth_date": "1988-06-09",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

type sheetResponse struct {
	File   string                 `json:"file"`
	Report attendance.SheetReport `json:"report"`
}

// =============================================================================
// HEALTH AND EMPLOYEES
// =============================================================================

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode[map[string]string](t, rec)["status"])
}

func TestEmployees_CRUD(t *testing.T) {
	// GIVEN: An empty roster
	// WHEN: Creating, reading, listing and deleting an employee
	// THEN: Each call reflects the stored state

	s := newTestServer(t)
	s.seedSara(t)

	rec := s.do(t, http.MethodGet, "/api/employees/emp-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	emp := decode[timeoff.Employee](t, rec)
	assert.Equal(t, "Sara Adel", emp.Name)
	assert.Equal(t, "17", emp.MachineID)
	assert.Equal(t, "2015-04-01", emp.HireDate.String())

	rec = s.do(t, http.MethodGet, "/api/employees", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]timeoff.Employee](t, rec), 1)

	rec = s.do(t, http.MethodDelete, "/api/employees/emp-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/employees/emp-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEmployees_ValidationDetails(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/employees", map[string]any{"id": "emp-9", "hire_date": "01/04/2015"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decode[struct {
		Error   string            `json:"error"`
		Details map[string]string `json:"details"`
	}](t, rec)
	assert.Contains(t, resp.Details, "name")
	assert.Contains(t, resp.Details, "subsidiary")
	assert.Contains(t, resp.Details, "hire_date")
}

func TestEmployees_MalformedBody(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/employees", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// SHEETS AND ATTENDANCE
// =============================================================================

func TestUploadSheet_DailyStoresRecords(t *testing.T) {
	// GIVEN: Sara with machine ID 17 and an export for 10 March
	// WHEN: Uploading it as a daily sheet
	// THEN: One record with 08:50:00 worked is stored and the report is kept

	s := newTestServer(t)
	s.seedSara(t)

	rec := s.upload(t, dayExport, map[string]string{"mode": "daily", "date": "2024-03-10"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[sheetResponse](t, rec)
	assert.Equal(t, 1, resp.Report.Created)
	assert.Equal(t, 0, resp.Report.Failed)
	assert.True(t, strings.HasSuffix(resp.File, ".csv"))

	rec = s.do(t, http.MethodGet, "/api/attendance?from=2024-03-10&to=2024-03-10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Records []attendance.Record `json:"records"`
	}](t, rec)
	require.Len(t, list.Records, 1)
	assert.Equal(t, "08:50:00", list.Records[0].WorkHours)
	assert.Equal(t, "00:20:00", list.Records[0].Overtime)

	rec = s.do(t, http.MethodGet, "/api/sheets/"+resp.Report.SheetID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stored := decode[attendance.SheetReport](t, rec)
	assert.Equal(t, 1, stored.Created)

	rec = s.do(t, http.MethodGet, "/api/attendance/export?year=2024&month=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attendance-2024-03.csv")
	assert.Contains(t, rec.Body.String(), "Sara Adel")
}

func TestProcessSheet_StoredFileRerunSkips(t *testing.T) {
	// GIVEN: An export already saved in the sheet directory
	// WHEN: Processing the same day twice by reference
	// THEN: The second run skips the existing record

	s := newTestServer(t)
	s.seedSara(t)
	ref, err := s.dir.Save(context.Background(), ".csv", strings.NewReader(dayExport))
	require.NoError(t, err)

	body := map[string]any{"file": ref, "mode": "daily", "date": "2024-03-10"}
	rec := s.do(t, http.MethodPost, "/api/sheets", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/sheets", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, decode[sheetResponse](t, rec).Report.Skipped)
}

func TestProcessSheet_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   map[string]any
		status int
	}{
		{"missing file", map[string]any{"file": "nope.csv", "mode": "daily", "date": "2024-03-10"}, http.StatusNotFound},
		{"escaping reference", map[string]any{"file": "../etc/passwd", "mode": "daily", "date": "2024-03-10"}, http.StatusBadRequest},
		{"daily without date", map[string]any{"file": "x.csv", "mode": "daily"}, http.StatusBadRequest},
		{"monthly without month", map[string]any{"file": "x.csv", "mode": "monthly", "year": 2024}, http.StatusBadRequest},
		{"unknown mode", map[string]any{"file": "x.csv", "mode": "weekly"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			rec := s.do(t, http.MethodPost, "/api/sheets", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestUploadSheet_BadHeader(t *testing.T) {
	s := newTestServer(t)
	s.seedSara(t)

	rec := s.upload(t, "Who,When\nSara,10/03/2024 08:00\n", map[string]string{"mode": "daily", "date": "2024-03-10"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAttendance_BadPeriod(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/attendance?from=2024-03-10&to=2024-03-01", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/attendance?from=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// COMPENSATION
// =============================================================================

func TestDeficit_GrantsPermission(t *testing.T) {
	// GIVEN: A 60-minute shortfall on 10 March and the default 2-hour quota
	// WHEN: Processing the day and reading the month's permissions
	// THEN: One 60-minute grant is listed and audited

	s := newTestServer(t)
	s.seedSara(t)

	rec := s.upload(t, shortDayExport, map[string]string{"mode": "daily", "date": "2024-03-10"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decode[sheetResponse](t, rec).Report.Permissions)

	rec = s.do(t, http.MethodGet, "/api/employees/emp-1/permissions?year=2024&month=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[api.PermissionSummaryDTO](t, rec)
	assert.Equal(t, 60, summary.GrantedMinutes)
	assert.Equal(t, "1 hour", summary.GrantedText)
	assert.Equal(t, "2024-03", summary.Month)
	require.Len(t, summary.Permissions, 1)
	assert.Equal(t, 60, summary.Permissions[0].RemainingMinutes)

	rec = s.do(t, http.MethodGet, "/api/audit?employee_id=emp-1&action=permission_granted", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "1 hour")
}

func TestCreateMission_AbsorbsDeficit(t *testing.T) {
	// GIVEN: A mission from 14:00 to 13:00 on the short day
	// WHEN: Processing the day
	// THEN: The literal (from - to) hour covers the shortfall and no permission is granted

	s := newTestServer(t)
	s.seedSara(t)

	rec := s.do(t, http.MethodPost, "/api/missions", map[string]any{
		"employee_id": "emp-1", "date": "2024-03-10", "from": "14:00", "to": "13:00",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.upload(t, shortDayExport, map[string]string{"mode": "daily", "date": "2024-03-10"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 0, decode[sheetResponse](t, rec).Report.Permissions)
}

func TestCreateMission_Invalid(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/missions", map[string]any{
		"employee_id": "emp-1", "date": "2024-03-10", "from": "2pm", "to": "13:00",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// LEAVE
// =============================================================================

func TestLeave_AccrueCommitRestoreReset(t *testing.T) {
	// GIVEN: A rule for subsidiary 1 and an employee hired in 2015
	// WHEN: Accruing, committing a request, rejecting it, then resetting transferred days
	// THEN: The balance follows each event

	s := newTestServer(t)
	s.seedSara(t)

	rec := s.do(t, http.MethodPost, "/api/rules", `{"subsidiary":"1","year":2024,"annual_normal":21,"casual_days":7,"sick_days":15,"transfer_enabled":true}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/rules?year=2024", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"subsidiary":"1"`)

	rec = s.do(t, http.MethodPost, "/api/leave/accrue", map[string]any{"as_of": "2024-01-15"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	accrual := decode[timeoff.AccrualReport](t, rec)
	assert.Equal(t, 1, accrual.Created)
	assert.Equal(t, 2024, accrual.Year)

	rec = s.do(t, http.MethodGet, "/api/employees/emp-1/balances/2024", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	bal := decode[timeoff.Balance](t, rec)
	assert.Equal(t, "7", bal.Casual.String())

	rec = s.do(t, http.MethodPost, "/api/leave/types", map[string]any{"id": 3, "name": "Casual", "kind": "casual"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	request := map[string]any{
		"id": "req-1", "employee_id": "emp-1", "leave_type": 3, "days": "2",
		"status": "pending_deduct_balance", "end": "2024-02-01",
		"carried": map[string]any{"annual": bal.Annual, "casual": "5", "sick": bal.Sick},
	}
	rec = s.do(t, http.MethodPost, "/api/leave/requests/saved", map[string]any{"request": request, "previous_status": "pending"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	event := decode[api.LeaveEventResponse](t, rec)
	require.True(t, event.Changed)
	assert.Equal(t, "5", event.Balance.Casual.String())

	request["status"] = "rejected"
	rec = s.do(t, http.MethodPost, "/api/leave/requests/saved", map[string]any{"request": request, "previous_status": "pending_deduct_balance"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	event = decode[api.LeaveEventResponse](t, rec)
	require.True(t, event.Changed)
	assert.Equal(t, "7", event.Balance.Casual.String())

	// Deleting a rejected request changes nothing.
	rec = s.do(t, http.MethodPost, "/api/leave/requests/deleted", map[string]any{"request": request})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[api.LeaveEventResponse](t, rec).Changed)

	rec = s.do(t, http.MethodPost, "/api/leave/reset-transferred", map[string]any{"year": 2024})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decode[timeoff.ResetReport](t, rec).Reset)

	rec = s.do(t, http.MethodGet, "/api/leave/balances?year=2024", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Balances []timeoff.Balance `json:"balances"`
	}](t, rec)
	require.Len(t, list.Balances, 1)
	assert.True(t, list.Balances[0].Transferred.IsZero())
}

func TestLeave_UnknownLeaveType(t *testing.T) {
	s := newTestServer(t)
	s.seedSara(t)

	request := map[string]any{
		"id": "req-1", "employee_id": "emp-1", "leave_type": 99, "days": "1",
		"status": "rejected", "end": "2024-02-01",
	}
	rec := s.do(t, http.MethodPost, "/api/leave/requests/saved", map[string]any{"request": request, "previous_status": "pending"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestRules_BatchAndInvalid(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/rules", `[{"subsidiary":"1","year":2024},{"subsidiary":"2","year":2024}]`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, float64(2), decode[map[string]any](t, rec)["count"])

	rec = s.do(t, http.MethodPost, "/api/rules", `{"subsidiary":"1","year":1900}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func TestHolidays_CreateListDelete(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/holidays", map[string]any{"date": "2024-03-11", "name": "Spring", "recurring": true})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode[map[string]any](t, rec)["id"].(string)

	rec = s.do(t, http.MethodGet, "/api/holidays", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Spring")

	rec = s.do(t, http.MethodDelete, "/api/holidays/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/holidays/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
