package routes

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hasker/hasker/internal/db"
	"github.com/hasker/hasker/internal/dbtest"
	"github.com/hasker/hasker/internal/models"
	"github.com/hasker/hasker/internal/render"
	"github.com/hasker/hasker/web"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
)

var (
	testSecret = []byte("test-secret")
	sdb        *db.SharedDB
	userSeq    int64
)

func TestMain(m *testing.M) {
	flag.Parse()
	os.Exit(runTests(m))
}

func runTests(m *testing.M) int {
	if testing.Short() {
		return m.Run()
	}
	ctx := context.Background()
	dbURL, stop, err := dbtest.StartPostgres(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Skipping database tests")
		return m.Run()
	}
	defer stop()

	if err := db.MigrateUp(dbURL, dbtest.MigrationsDir()); err != nil {
		panic(err)
	}
	database, err := db.Connect(ctx, &models.EnvConfig{DatabaseURL: dbURL, Debug: true, MaxTags: 3})
	if err != nil {
		panic(err)
	}
	defer database.Close()
	sdb = &database
	return m.Run()
}

func newTestRouter(t *testing.T, database *db.SharedDB) http.Handler {
	t.Helper()
	config := &models.EnvConfig{
		Debug:          true,
		SecretKey:      testSecret,
		PostsPerMinute: 1000,
		MaxTags:        3,
		MediaDir:       t.TempDir(),
	}
	tmpls := render.GetTemplates(config, web.FS)
	static, err := fs.Sub(web.FS, "static")
	require.Nil(t, err)

	var metrics *Metrics
	if database != nil {
		metrics = NewMetrics(database.Pool())
	} else {
		metrics = NewMetrics(nil)
	}
	return NewRouter(config, database, zerolog.Nop(), &tmpls, metrics, static)
}

func requireDB(t *testing.T) http.Handler {
	t.Helper()
	if sdb == nil {
		t.Skip("database not available")
	}
	return newTestRouter(t, sdb)
}

func do(t *testing.T, h http.Handler, method, target string, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func result(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	res := jsonResult{}
	require.Nil(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res.Result
}

func TestVoteLoginRequired(t *testing.T) {
	h := newTestRouter(t, nil)
	form := url.Values{"increment": {"1"}, "instance_type": {"q"}, "instance_id": {"1"}}
	rec := do(t, h, http.MethodPost, "/vote/1", form, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Login required", result(t, rec))

	rec = do(t, h, http.MethodPost, "/accept-answer/1/2", url.Values{}, nil)
	require.Equal(t, "Login required", result(t, rec))
}

func TestInternalResult(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/vote/1", nil)
	rec := httptest.NewRecorder()
	internalResult(rec, req, errors.New("connection reset"), "Applying vote")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, resultInternal, result(t, rec))
}

func TestAPIUnauthorized(t *testing.T) {
	h := newTestRouter(t, nil)

	rec := do(t, h, http.MethodGet, "/api/questions/", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "detail")

	req := httptest.NewRequest(http.MethodGet, "/api/questions", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, `Bearer realm="api"`, rec.Header().Get("WWW-Authenticate"))
}

func TestTokens(t *testing.T) {
	now := time.Now()
	token, err := IssueToken(testSecret, 42, now)
	require.Nil(t, err)

	userID, err := ParseToken(testSecret, token)
	require.Nil(t, err)
	require.Equal(t, 42, userID)

	_, err = ParseToken([]byte("other-secret"), token)
	require.ErrorIs(t, err, errBadToken)

	expired, err := IssueToken(testSecret, 42, now.Add(-2*apiTokenTTL))
	require.Nil(t, err)
	_, err = ParseToken(testSecret, expired)
	require.ErrorIs(t, err, errBadToken)
}

func TestPostLimiter(t *testing.T) {
	l := NewPostLimiter(2)
	require.True(t, l.Allow(1))
	require.True(t, l.Allow(1))
	require.False(t, l.Allow(1))
	require.True(t, l.Allow(2))

	unlimited := NewPostLimiter(0)
	for i := 0; i < 100; i++ {
		require.True(t, unlimited.Allow(1))
	}
}

func TestPostLimiterEvictsIdle(t *testing.T) {
	clock := time.Now()
	l := NewPostLimiter(1)
	l.now = func() time.Time { return clock }
	l.lastSweep = clock

	require.True(t, l.Allow(1))
	require.False(t, l.Allow(1))

	clock = clock.Add(limiterSweep)
	require.True(t, l.Allow(2))
	require.Len(t, l.visitors, 2)

	clock = clock.Add(limiterIdleTTL)
	require.True(t, l.Allow(2))
	require.Len(t, l.visitors, 1)
	require.Contains(t, l.visitors, 2)

	// Forgotten users start with a full bucket.
	require.True(t, l.Allow(1))
}

func TestTagInputs(t *testing.T) {
	require.Equal(t, []string{"", "", ""}, tagInputs(nil, 3))
	require.Equal(t, []string{"go", ""}, tagInputs([]string{"go"}, 2))
	require.Equal(t, []string{"a", "b", "c", "d"}, tagInputs([]string{"a", "b", "c", "d"}, 3))
}

func TestSafeRedirect(t *testing.T) {
	require.Equal(t, "/question/3", safeRedirect("/question/3"))
	require.Equal(t, "/", safeRedirect(""))
	require.Equal(t, "/", safeRedirect("https://evil.example"))
	require.Equal(t, "/", safeRedirect("//evil.example"))
}

func TestToAppError(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{models.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", models.ErrUnauthorized), http.StatusUnauthorized},
		{models.ErrPermDenied, http.StatusForbidden},
		{models.FieldErrors{"title": {"too short"}}, http.StatusBadRequest},
		{models.TooManyTagsError{Max: 3}, http.StatusBadRequest},
		{&ErrTooManyRequests{}, http.StatusTooManyRequests},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		require.Equal(t, c.status, toAppError(c.err).Status(), c.err.Error())
	}
}

func TestMetricsAndStatic(t *testing.T) {
	h := newTestRouter(t, nil)

	rec := do(t, h, http.MethodGet, "/static/hasker.css", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "hasker_http_request_duration_seconds")
}

// signUp registers a fresh user and returns its session cookie and username.
func signUp(t *testing.T, h http.Handler) (*http.Cookie, string) {
	t.Helper()
	n := atomic.AddInt64(&userSeq, 1)
	username := fmt.Sprintf("routes%d", n)
	form := url.Values{
		"username":  {username},
		"email":     {username + "@example.com"},
		"password1": {"s3cret-pass"},
		"password2": {"s3cret-pass"},
	}
	rec := do(t, h, http.MethodPost, "/sign-up", form, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	for _, c := range rec.Result().Cookies() {
		if c.Name == tokenCookie {
			return c, username
		}
	}
	t.Fatal("no session cookie after sign up")
	return nil, ""
}

func ask(t *testing.T, h http.Handler, cookie *http.Cookie, tags ...string) int {
	t.Helper()
	form := url.Values{
		"title":   {"Where is the tab key?"},
		"message": {"My keyboard seems to be missing one."},
		"tags":    tags,
	}
	rec := do(t, h, http.MethodPost, "/ask", form, cookie)
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	id, err := strconv.Atoi(strings.TrimPrefix(rec.Header().Get("Location"), "/question/"))
	require.Nil(t, err)
	return id
}

func TestAskAndVote(t *testing.T) {
	h := requireDB(t)
	author, _ := signUp(t, h)
	voter, _ := signUp(t, h)
	qid := ask(t, h, author, "keyboards", "tag1")

	rec := do(t, h, http.MethodGet, fmt.Sprintf("/question/%d", qid), nil, voter)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Where is the tab key?")

	target := fmt.Sprintf("/vote/%d", qid)
	form := url.Values{"increment": {"1"}, "instance_type": {"q"}, "instance_id": {strconv.Itoa(qid)}}
	require.Equal(t, "Success", result(t, do(t, h, http.MethodPost, target, form, voter)))
	require.Equal(t, "Already voted", result(t, do(t, h, http.MethodPost, target, form, voter)))

	bad := []url.Values{
		{"increment": {"2"}, "instance_type": {"q"}, "instance_id": {"1"}},
		{"increment": {"x"}, "instance_type": {"q"}, "instance_id": {"1"}},
		{"increment": {"1"}, "instance_type": {"z"}, "instance_id": {"1"}},
		{"increment": {"1"}, "instance_type": {"a"}, "instance_id": {"999999"}},
	}
	for _, f := range bad {
		require.Equal(t, "Wrong request data", result(t, do(t, h, http.MethodPost, target, f, voter)), f.Encode())
	}
	require.Equal(t, "Wrong request data", result(t, do(t, h, http.MethodPost, "/vote/999999", form, voter)))

	rec = do(t, h, http.MethodPost, "/ask", url.Values{
		"title":   {"Four tags question"},
		"message": {"This one has too many tags."},
		"tags":    {"a", "b", "c", "d"},
	}, author)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "Maximum number of tags: 3")
}

func TestAcceptAnswer(t *testing.T) {
	h := requireDB(t)
	author, _ := signUp(t, h)
	helper, _ := signUp(t, h)
	qid := ask(t, h, author)

	rec := do(t, h, http.MethodPost, fmt.Sprintf("/question/%d", qid), url.Values{"message": {"Use the spacebar four times."}}, helper)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	rec = do(t, h, http.MethodPost, fmt.Sprintf("/question/%d", qid), url.Values{"message": {"Use the spacebar four times."}}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodGet, "/ask", nil, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/login?next=%2Fask", rec.Header().Get("Location"))

	page := models.NewPage(1, models.AnswersPerPage)
	answers, err := sdb.ListAnswers(context.Background(), qid, "", &page)
	require.Nil(t, err)
	require.Len(t, answers, 1)
	target := fmt.Sprintf("/accept-answer/%d/%d", qid, answers[0].ID)

	require.Equal(t, "Not found", result(t, do(t, h, http.MethodPost, target, url.Values{}, helper)))
	require.Equal(t, "Success", result(t, do(t, h, http.MethodPost, target, url.Values{}, author)))

	answers, err = sdb.ListAnswers(context.Background(), qid, "", &page)
	require.Nil(t, err)
	require.True(t, answers[0].Correct)
}

func TestTypeaheadAndTagSearch(t *testing.T) {
	h := requireDB(t)
	author, _ := signUp(t, h)
	ask(t, h, author, "typeahead-tag")

	rec := do(t, h, http.MethodGet, "/tag-typeahead?query=ahead-T", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	items := []typeaheadItem{}
	require.Nil(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Contains(t, items, typeaheadItem{Value: "typeahead-tag", Label: "typeahead-tag"})
	require.LessOrEqual(t, len(items), models.TypeaheadLimit)

	rec = do(t, h, http.MethodGet, "/search?q=tag:TYPEAHEAD-TAG", nil, nil)
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/tag/typeahead-tag", rec.Header().Get("Location"))

	rec = do(t, h, http.MethodGet, "/search?q=tag:missing", nil, nil)
	require.Equal(t, "/tag/missing", rec.Header().Get("Location"))

	rec = do(t, h, http.MethodGet, "/tag/typeahead-tag", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Where is the tab key?")
}

func TestAPI(t *testing.T) {
	h := requireDB(t)
	author, username := signUp(t, h)
	qid := ask(t, h, author, "api", "json, yaml")

	rec := do(t, h, http.MethodPost, "/api/token", url.Values{"username": {username}, "password": {"wrong"}}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/token", url.Values{"username": {username}, "password": {"s3cret-pass"}}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tok struct{ Token string }
	require.Nil(t, json.Unmarshal(rec.Body.Bytes(), &tok))

	get := func(target string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.Header.Set("Authorization", "Bearer "+tok.Token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec = get("/api/questions/")
	require.Equal(t, http.StatusOK, rec.Code)
	var list map[string]json.RawMessage
	require.Nil(t, json.Unmarshal(rec.Body.Bytes(), &list))
	for _, key := range []string{"count", "page_count", "next", "previous", "results"} {
		require.Contains(t, list, key)
	}

	rec = get(fmt.Sprintf("/api/questions/%d", qid))
	require.Equal(t, http.StatusOK, rec.Code)
	q := apiQuestion{}
	require.Nil(t, json.Unmarshal(rec.Body.Bytes(), &q))
	require.True(t, q.HasTags)
	require.False(t, q.HasAnswers)
	require.Equal(t, fmt.Sprintf("http://example.com/api/questions/%d/tags/", qid), q.TagsURL)

	rec = get(fmt.Sprintf("/api/questions/%d/tags/", qid))
	require.Equal(t, http.StatusOK, rec.Code)
	tags := []models.Tag{}
	require.Nil(t, json.Unmarshal(rec.Body.Bytes(), &tags))
	require.Len(t, tags, 2)
	labels := []string{tags[0].Tag, tags[1].Tag}
	require.ElementsMatch(t, []string{"api", "json, yaml"}, labels)

	require.Equal(t, http.StatusNotFound, get("/api/questions/999999").Code)
	require.Equal(t, http.StatusNotFound, get("/api/questions/999999/answers").Code)
	require.Equal(t, http.StatusNotFound, get("/api/questions?page=999").Code)
	require.Equal(t, http.StatusNotFound, get("/api/questions?page=9223372036854775807").Code)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/?page=9223372036854775807", nil, nil).Code)
	require.Equal(t, http.StatusOK, get("/api/questions/trending-questions").Code)
}
