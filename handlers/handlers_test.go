package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"collageAPI/internal/asset"
	"collageAPI/internal/history"
	"collageAPI/internal/storage"
	"collageAPI/internal/types/share"
	"collageAPI/middleware"
	"collageAPI/services"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryShareRepo struct {
	mu     sync.Mutex
	shares map[uuid.UUID]*share.Share
}

func (m *memoryShareRepo) Create(ctx context.Context, s *share.Share) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shares[s.ID] = s
	return nil
}

func (m *memoryShareRepo) Get(ctx context.Context, id uuid.UUID) (*share.Share, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.shares[id]; ok {
		return s, nil
	}
	return nil, storage.ErrNotFound
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}

func newTestRouter(t *testing.T) *mux.Router {
	t.Helper()
	table := asset.DefaultTable()
	codec := history.NewCodec(table)

	shareService := services.NewShareService(&memoryShareRepo{shares: map[uuid.UUID]*share.Share{}}, codec, "https://collage.test", time.Hour)
	historyService := services.NewHistoryService(func() services.StoreFactory {
		stores := map[string]storage.Store{}
		return func(owner string) storage.Store {
			if _, ok := stores[owner]; !ok {
				stores[owner] = storage.NewMemoryStore()
			}
			return stores[owner]
		}
	}(), codec)
	renderService, err := services.NewRenderService(asset.NewLoader(fstest.MapFS{"images/dog.png": {Data: testPNG(t)}}, table), codec)
	require.NoError(t, err)

	sh := NewShareHandler(shareService)
	hh := NewHistoryHandler(historyService)

	r := mux.NewRouter()
	r.HandleFunc("/s/{id}", sh.SharePage).Methods("GET")
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/assets", NewAssetHandler(table).GetAssets).Methods("GET")
	api.HandleFunc("/render", NewRenderHandler(renderService).RenderPreview).Methods("POST")
	api.HandleFunc("/share", sh.CreateShare).Methods("POST")
	api.HandleFunc("/share/{id}", sh.GetShare).Methods("GET")
	api.HandleFunc("/share/{id}/image", sh.GetShareImage).Methods("GET")
	api.HandleFunc("/me/history", hh.GetHistory).Methods("GET")
	api.HandleFunc("/me/history", hh.SaveHistory).Methods("PUT")
	api.HandleFunc("/me/history", hh.DeleteHistory).Methods("DELETE")
	return r
}

func serve(r http.Handler, method, path string, body interface{}, clerkID string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, _ := json.Marshal(b)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if clerkID != "" {
		req = req.WithContext(middleware.WithClerkID(req.Context(), clerkID))
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestShareFlow(t *testing.T) {
	r := newTestRouter(t)
	img := testPNG(t)

	rr := serve(r, http.MethodPost, "/api/v1/share", map[string]interface{}{
		"imageData": "data:image/png;base64," + base64.StdEncoding.EncodeToString(img),
		"history":   json.RawMessage(`[["text",1,2,0,"hi",50]]`),
		"bg":        "bg03",
	}, "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var created share.CreateShareResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	require.True(t, strings.HasPrefix(created.Link, "https://collage.test/?key="))
	id := strings.TrimPrefix(created.Link, "https://collage.test/?key=")

	rr = serve(r, http.MethodGet, "/api/v1/share/"+id, nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var got share.Share
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "bg03", got.Background)
	assert.JSONEq(t, `[["text",1,2,0,"hi",50]]`, string(got.History))

	rr = serve(r, http.MethodGet, "/api/v1/share/"+id+"/image", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
	assert.Equal(t, img, rr.Body.Bytes())

	rr = serve(r, http.MethodGet, "/s/"+id, nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `name="twitter:card"`)
	assert.Contains(t, rr.Body.String(), "https://collage.test/api/v1/share/"+id+"/image")
}

func TestCreateShare_BadRequests(t *testing.T) {
	r := newTestRouter(t)

	rr := serve(r, http.MethodPost, "/api/v1/share", "{not json", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serve(r, http.MethodPost, "/api/v1/share", map[string]string{"imageData": "nope"}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serve(r, http.MethodPost, "/api/v1/share", map[string]string{
		"imageData": "data:image/png;base64," + strings.Repeat("A", 7<<20),
	}, "")
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestGetShare_Errors(t *testing.T) {
	r := newTestRouter(t)

	rr := serve(r, http.MethodGet, "/api/v1/share/not-a-uuid", nil, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serve(r, http.MethodGet, "/api/v1/share/"+uuid.NewString(), nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"error": "Share not found"}`, rr.Body.String())
}

func TestHistoryEndpoints(t *testing.T) {
	r := newTestRouter(t)

	rr := serve(r, http.MethodGet, "/api/v1/me/history", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = serve(r, http.MethodPut, "/api/v1/me/history", map[string]interface{}{
		"history": json.RawMessage(`[["img",3,4,0,"img06",60]]`),
		"bg":      "bg02",
	}, "user_1")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = serve(r, http.MethodGet, "/api/v1/me/history", nil, "user_1")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"history": [["img",3,4,0,"img06",60]], "bg": "bg02"}`, rr.Body.String())

	rr = serve(r, http.MethodPut, "/api/v1/me/history", map[string]interface{}{
		"history": json.RawMessage(`[["img",3,4,0,"img99",60]]`),
	}, "user_1")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serve(r, http.MethodDelete, "/api/v1/me/history", nil, "user_1")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = serve(r, http.MethodGet, "/api/v1/me/history", nil, "user_1")
	assert.JSONEq(t, `{"history": [], "bg": "bg01"}`, rr.Body.String())
}

func TestGetAssets(t *testing.T) {
	r := newTestRouter(t)

	rr := serve(r, http.MethodGet, "/api/v1/assets", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Objects     []asset.Object     `json:"objects"`
		Backgrounds []asset.Background `json:"backgrounds"`
		DefaultBg   string             `json:"default_bg"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Len(t, body.Objects, 6)
	assert.Len(t, body.Backgrounds, 3)
	assert.Equal(t, "bg01", body.DefaultBg)
}

func TestRenderPreview(t *testing.T) {
	r := newTestRouter(t)

	rr := serve(r, http.MethodPost, "/api/v1/render", map[string]interface{}{
		"history": json.RawMessage(`[["img",10,10,0,"img01",40],["img",0,0,0,"img02",40],["bogus"]]`),
	}, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
	assert.Equal(t, "2", rr.Header().Get("X-Skipped-Entries"))

	_, err := png.Decode(rr.Body)
	assert.NoError(t, err)

	rr = serve(r, http.MethodPost, "/api/v1/render", map[string]interface{}{"history": "nope"}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRenderPreview_Limits(t *testing.T) {
	r := newTestRouter(t)

	rr := serve(r, http.MethodPost, "/api/v1/render", `{"history": null, "bg": "bg01"}`, "")
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "0", rr.Header().Get("X-Skipped-Entries"))

	rr = serve(r, http.MethodPost, "/api/v1/render", map[string]interface{}{
		"history": json.RawMessage(`[["text",600,300,0,"Hello",200000]]`),
	}, "")
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	many := make([]json.RawMessage, maxRenderEntries+1)
	for i := range many {
		many[i] = json.RawMessage(`["text",1,1,0,"x",10]`)
	}
	rr = serve(r, http.MethodPost, "/api/v1/render", map[string]interface{}{"history": many}, "")
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestCreateShare_RecordsOwner(t *testing.T) {
	repo := &memoryShareRepo{shares: map[uuid.UUID]*share.Share{}}
	svc := services.NewShareService(repo, history.NewCodec(asset.DefaultTable()), "https://collage.test", time.Hour)
	h := NewShareHandler(svc)

	body := map[string]string{"imageData": "data:image/png;base64," + base64.StdEncoding.EncodeToString(testPNG(t))}

	signedIn := serve(http.HandlerFunc(h.CreateShare), http.MethodPost, "/api/v1/share", body, "user_owner")
	require.Equal(t, http.StatusCreated, signedIn.Code, signedIn.Body.String())
	anonymous := serve(http.HandlerFunc(h.CreateShare), http.MethodPost, "/api/v1/share", body, "")
	require.Equal(t, http.StatusCreated, anonymous.Code, anonymous.Body.String())

	owners := map[string]int{}
	for _, s := range repo.shares {
		owners[s.Owner]++
	}
	assert.Equal(t, map[string]int{"user_owner": 1, "": 1}, owners)
}
