package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

// FakePlatform is an in-memory stand-in for the analytics platform's REST API.
// It keeps datamodels, datasets, tables, relations and builds in memory and
// records every request for assertions.
type FakePlatform struct {
	Server *httptest.Server

	Username string
	Password string
	Token    string

	mu            sync.Mutex
	requests      []RecordedRequest
	seq           int
	datamodels    map[string]*fakeDatamodel
	uploadTokens  map[string]bool
	uploads       map[string][]byte
	builds        map[string]*fakeBuild
	buildStatuses []string
}

// RecordedRequest is a request received by the fake.
type RecordedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

type fakeDatamodel struct {
	OID       string
	Title     string
	Datasets  []*fakeDataset
	Relations []json.RawMessage
}

type fakeDataset struct {
	OID        string
	Name       string
	Connection json.RawMessage
	Tables     []*fakeTable
}

type fakeTable struct {
	OID     string
	ID      string
	Columns []fakeColumn
}

type fakeColumn struct {
	OID       string      `json:"oid"`
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Type      int         `json:"type"`
	Size      int         `json:"size"`
	Precision json.Number `json:"precision"`
	Scale     json.Number `json:"scale"`
}

type fakeBuild struct {
	OID          string
	DatamodelOID string
	BuildType    string
	polls        int
}

// NewFakePlatform starts a fake platform server that is closed when the test ends.
func NewFakePlatform(t testing.TB) *FakePlatform {
	t.Helper()
	f := &FakePlatform{
		Username:      "admin@example.com",
		Password:      "s3cret",
		Token:         "fake-token",
		datamodels:    make(map[string]*fakeDatamodel),
		uploadTokens:  make(map[string]bool),
		uploads:       make(map[string][]byte),
		builds:        make(map[string]*fakeBuild),
		buildStatuses: []string{"", "building", "done"},
	}
	f.Server = httptest.NewServer(f.routes())
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the base URL of the fake.
func (f *FakePlatform) URL() string { return f.Server.URL }

// SetBuildStatuses sets the status sequence every build reports, one per
// poll. The last value repeats. An empty string is reported as null.
func (f *FakePlatform) SetBuildStatuses(statuses ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buildStatuses = statuses
}

// Requests returns a copy of the recorded requests.
func (f *FakePlatform) Requests() []RecordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RecordedRequest(nil), f.requests...)
}

// Count returns how many requests matched method and a path suffix.
func (f *FakePlatform) Count(method, pathSuffix string) int {
	n := 0
	for _, r := range f.Requests() {
		if r.Method == method && strings.HasSuffix(r.Path, pathSuffix) {
			n++
		}
	}
	return n
}

// Upload returns the content stored under a remote path.
func (f *FakePlatform) Upload(path string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.uploads[path]
	return data, ok
}

// Relations returns the relation payloads submitted to a datamodel.
func (f *FakePlatform) Relations(datamodelOID string) []json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	dm, ok := f.datamodels[datamodelOID]
	if !ok {
		return nil
	}
	return append([]json.RawMessage(nil), dm.Relations...)
}

// Datamodels returns the number of datamodels stored.
func (f *FakePlatform) Datamodels() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.datamodels)
}

// SeedTable creates (if needed) a datamodel and dataset and adds a table with
// the given column names. It returns the datamodel oid.
func (f *FakePlatform) SeedTable(datamodelTitle, datasetName, tableID string, columns ...string) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	dm := f.datamodelByTitle(datamodelTitle)
	if dm == nil {
		dm = &fakeDatamodel{OID: f.nextID("dm"), Title: datamodelTitle}
		f.datamodels[dm.OID] = dm
	}
	var ds *fakeDataset
	for _, d := range dm.Datasets {
		if d.Name == datasetName {
			ds = d
		}
	}
	if ds == nil {
		ds = &fakeDataset{OID: f.nextID("ds"), Name: datasetName}
		dm.Datasets = append(dm.Datasets, ds)
	}
	tbl := &fakeTable{OID: f.nextID("tbl"), ID: tableID}
	for _, name := range columns {
		tbl.Columns = append(tbl.Columns, fakeColumn{
			OID: f.nextID("col"), ID: name, Name: name, Type: 18, Precision: "0", Scale: "0",
		})
	}
	ds.Tables = append(ds.Tables, tbl)
	return dm.OID
}

func (f *FakePlatform) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *FakePlatform) datamodelByTitle(title string) *fakeDatamodel {
	for _, dm := range f.datamodels {
		if dm.Title == title {
			return dm
		}
	}
	return nil
}

func (f *FakePlatform) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(f.record)

	r.Post("/api/v1/authentication/login", f.login)

	r.Group(func(r chi.Router) {
		r.Use(f.requireToken)

		r.Post("/storage/fs/validate_file", f.validateFile)
		r.Post("/storage/fs/upload", f.upload)

		r.Get("/api/v2/datamodels/schema", f.getDatamodel)
		r.Post("/api/v2/datamodels", f.createDatamodel)
		r.Delete("/api/v2/datamodels/{dm}", f.deleteDatamodel)

		r.Get("/api/v2/datamodels/{dm}/schema/datasets", f.listDatasets)
		r.Post("/api/v2/datamodels/{dm}/schema/datasets", f.createDataset)
		r.Patch("/api/v2/datamodels/{dm}/schema/datasets/{ds}", f.updateDataset)
		r.Delete("/api/v2/datamodels/{dm}/schema/datasets/{ds}", f.deleteDataset)

		r.Post("/api/v2/datamodels/{dm}/schema/datasets/{ds}/tables", f.createTable)
		r.Patch("/api/v2/datamodels/{dm}/schema/datasets/{ds}/tables/{tbl}", f.updateTable)

		r.Post("/api/v2/datamodels/{dm}/schema/relations", f.createRelation)

		r.Post("/api/v2/builds", f.createBuild)
		r.Get("/api/v2/builds/{build}", f.getBuild)
	})
	return r
}

func (f *FakePlatform) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		f.mu.Lock()
		f.requests = append(f.requests, RecordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Header: r.Header.Clone(),
			Body:   body,
		})
		f.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (f *FakePlatform) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+f.Token {
			writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
				"error": map[string]interface{}{"code": 1003, "message": "Unauthorized", "status": 401},
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func problem(w http.ResponseWriter, status int, title, detail string) {
	writeJSON(w, status, map[string]interface{}{
		"type":   "https://errors.example.com/http/general-error",
		"title":  title,
		"status": status,
		"detail": detail,
	})
}

func (f *FakePlatform) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		problem(w, http.StatusBadRequest, "BadRequest", err.Error())
		return
	}
	if r.PostForm.Get("username") != f.Username || r.PostForm.Get("password") != f.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"error": map[string]interface{}{
				"code": 5001, "message": "Invalid domain.", "status": 401, "httpMessage": "Unauthorized",
			},
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access_token": f.Token})
}

func (f *FakePlatform) validateFile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filename string `json:"filename"`
		Size     *int   `json:"size"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Filename == "" || req.Size == nil {
		problem(w, http.StatusBadRequest, "ValidationError", "filename and size are required")
		return
	}
	f.mu.Lock()
	token := f.nextID("upload")
	f.uploadTokens[token] = true
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (f *FakePlatform) upload(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("X-Upload-Token")
	f.mu.Lock()
	valid := f.uploadTokens[token]
	delete(f.uploadTokens, token)
	f.mu.Unlock()
	if !valid {
		problem(w, http.StatusForbidden, "InvalidUploadToken", "upload token is missing or expired")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		problem(w, http.StatusBadRequest, "BadRequest", err.Error())
		return
	}
	defer file.Close() //nolint:errcheck
	data, _ := io.ReadAll(file)

	f.mu.Lock()
	path := fmt.Sprintf("/opt/platform/storage/datasets/storage/%s/%s", f.nextID("file"), header.Filename)
	f.uploads[path] = data
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, []map[string]interface{}{
		{"storageInfo": map[string]string{"path": path}},
	})
}

func (f *FakePlatform) getDatamodel(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	dm := f.datamodelByTitle(r.URL.Query().Get("title"))
	f.mu.Unlock()
	if dm == nil {
		problem(w, http.StatusNotFound, "ElasticubeNotFound", "datamodel not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"oid": dm.OID, "title": dm.Title})
}

func (f *FakePlatform) createDatamodel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	defer f.mu.Unlock()
	if req.Title == "" {
		problem(w, http.StatusBadRequest, "ValidationError", "title is required")
		return
	}
	if f.datamodelByTitle(req.Title) != nil {
		problem(w, http.StatusBadRequest, "ElasticubeAlreadyExists", "datamodel already exists")
		return
	}
	dm := &fakeDatamodel{OID: f.nextID("dm"), Title: req.Title}
	f.datamodels[dm.OID] = dm
	writeJSON(w, http.StatusCreated, map[string]string{"oid": dm.OID, "title": dm.Title})
}

func (f *FakePlatform) deleteDatamodel(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	oid := chi.URLParam(r, "dm")
	if _, ok := f.datamodels[oid]; !ok {
		problem(w, http.StatusNotFound, "ElasticubeNotFound", "datamodel not found")
		return
	}
	delete(f.datamodels, oid)
	w.WriteHeader(http.StatusNoContent)
}

// datamodel must be called with f.mu held.
func (f *FakePlatform) datamodel(w http.ResponseWriter, r *http.Request) *fakeDatamodel {
	dm, ok := f.datamodels[chi.URLParam(r, "dm")]
	if !ok {
		problem(w, http.StatusNotFound, "ElasticubeNotFound", "datamodel not found")
		return nil
	}
	return dm
}

// dataset must be called with f.mu held.
func (f *FakePlatform) dataset(w http.ResponseWriter, r *http.Request) (*fakeDatamodel, *fakeDataset) {
	dm := f.datamodel(w, r)
	if dm == nil {
		return nil, nil
	}
	for _, ds := range dm.Datasets {
		if ds.OID == chi.URLParam(r, "ds") {
			return dm, ds
		}
	}
	problem(w, http.StatusNotFound, "DatasetNotFound", "dataset not found")
	return nil, nil
}

func datasetJSON(ds *fakeDataset) map[string]interface{} {
	tables := make([]map[string]interface{}, 0, len(ds.Tables))
	for _, t := range ds.Tables {
		tables = append(tables, tableJSON(t))
	}
	return map[string]interface{}{
		"oid":        ds.OID,
		"name":       ds.Name,
		"type":       "extract",
		"connection": ds.Connection,
		"schema":     map[string]interface{}{"tables": tables},
	}
}

func tableJSON(t *fakeTable) map[string]interface{} {
	return map[string]interface{}{
		"oid":     t.OID,
		"id":      t.ID,
		"name":    t.ID,
		"columns": t.Columns,
	}
}

func (f *FakePlatform) listDatasets(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	dm := f.datamodel(w, r)
	if dm == nil {
		return
	}
	out := make([]map[string]interface{}, 0, len(dm.Datasets))
	for _, ds := range dm.Datasets {
		out = append(out, datasetJSON(ds))
	}
	writeJSON(w, http.StatusOK, out)
}

type datasetRequest struct {
	Name       string          `json:"name"`
	Type       string          `json:"type"`
	Connection json.RawMessage `json:"connection"`
}

func (f *FakePlatform) createDataset(w http.ResponseWriter, r *http.Request) {
	var req datasetRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	defer f.mu.Unlock()
	dm := f.datamodel(w, r)
	if dm == nil {
		return
	}
	for _, ds := range dm.Datasets {
		if ds.Name == req.Name {
			problem(w, http.StatusBadRequest, "ValidationError", "dataset name already exists")
			return
		}
	}
	ds := &fakeDataset{OID: f.nextID("ds"), Name: req.Name, Connection: req.Connection}
	dm.Datasets = append(dm.Datasets, ds)
	writeJSON(w, http.StatusCreated, datasetJSON(ds))
}

func (f *FakePlatform) updateDataset(w http.ResponseWriter, r *http.Request) {
	var req datasetRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	defer f.mu.Unlock()
	_, ds := f.dataset(w, r)
	if ds == nil {
		return
	}
	ds.Connection = req.Connection
	writeJSON(w, http.StatusOK, datasetJSON(ds))
}

func (f *FakePlatform) deleteDataset(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	dm, ds := f.dataset(w, r)
	if ds == nil {
		return
	}
	kept := dm.Datasets[:0]
	for _, d := range dm.Datasets {
		if d != ds {
			kept = append(kept, d)
		}
	}
	dm.Datasets = kept
	w.WriteHeader(http.StatusNoContent)
}

type tableRequest struct {
	ID      string `json:"id"`
	Columns []struct {
		ID        string      `json:"id"`
		Name      string      `json:"name"`
		Type      int         `json:"type"`
		Size      int         `json:"size"`
		Precision json.Number `json:"precision"`
		Scale     json.Number `json:"scale"`
	} `json:"columns"`
}

// applyColumns must be called with f.mu held. Columns keep their oid when
// their id is unchanged.
func (f *FakePlatform) applyColumns(t *fakeTable, req tableRequest) {
	existing := make(map[string]string, len(t.Columns))
	for _, c := range t.Columns {
		existing[c.ID] = c.OID
	}
	cols := make([]fakeColumn, 0, len(req.Columns))
	for _, c := range req.Columns {
		oid, ok := existing[c.ID]
		if !ok {
			oid = f.nextID("col")
		}
		cols = append(cols, fakeColumn{
			OID: oid, ID: c.ID, Name: c.Name, Type: c.Type, Size: c.Size,
			Precision: c.Precision, Scale: c.Scale,
		})
	}
	t.Columns = cols
}

func (f *FakePlatform) createTable(w http.ResponseWriter, r *http.Request) {
	var req tableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		problem(w, http.StatusBadRequest, "ValidationError", err.Error())
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	_, ds := f.dataset(w, r)
	if ds == nil {
		return
	}
	for _, t := range ds.Tables {
		if t.ID == req.ID {
			problem(w, http.StatusBadRequest, "ValidationError", "table already exists")
			return
		}
	}
	t := &fakeTable{OID: f.nextID("tbl"), ID: req.ID}
	f.applyColumns(t, req)
	ds.Tables = append(ds.Tables, t)
	writeJSON(w, http.StatusCreated, tableJSON(t))
}

func (f *FakePlatform) updateTable(w http.ResponseWriter, r *http.Request) {
	var req tableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		problem(w, http.StatusBadRequest, "ValidationError", err.Error())
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	_, ds := f.dataset(w, r)
	if ds == nil {
		return
	}
	for _, t := range ds.Tables {
		if t.OID == chi.URLParam(r, "tbl") {
			f.applyColumns(t, req)
			writeJSON(w, http.StatusOK, tableJSON(t))
			return
		}
	}
	problem(w, http.StatusNotFound, "TableNotFound", "table not found")
}

func (f *FakePlatform) createRelation(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	defer f.mu.Unlock()
	dm := f.datamodel(w, r)
	if dm == nil {
		return
	}
	dm.Relations = append(dm.Relations, json.RawMessage(body))
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"oid":     f.nextID("rel"),
		"columns": json.RawMessage(body),
	})
}

func (f *FakePlatform) createBuild(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DatamodelID string `json:"datamodelId"`
		BuildType   string `json:"buildType"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.datamodels[req.DatamodelID]; !ok {
		problem(w, http.StatusBadRequest, "ElasticubeNotFound", "datamodel not found")
		return
	}
	b := &fakeBuild{OID: f.nextID("build"), DatamodelOID: req.DatamodelID, BuildType: req.BuildType}
	f.builds[b.OID] = b
	writeJSON(w, http.StatusCreated, map[string]string{"oid": b.OID, "datamodelId": b.DatamodelOID})
}

func (f *FakePlatform) getBuild(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.builds[chi.URLParam(r, "build")]
	if !ok {
		problem(w, http.StatusNotFound, "BuildNotFound", "build not found")
		return
	}
	var status interface{}
	if n := len(f.buildStatuses); n > 0 {
		idx := b.polls
		if idx >= n {
			idx = n - 1
		}
		if s := f.buildStatuses[idx]; s != "" {
			status = s
		}
	}
	b.polls++
	writeJSON(w, http.StatusOK, map[string]interface{}{"oid": b.OID, "status": status})
}
