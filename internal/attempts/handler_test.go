package attempts

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnquest/backend/internal/logger"
	"github.com/learnquest/backend/internal/middleware"
	"github.com/learnquest/backend/internal/models"
)

// asUser stands in for the JWT middleware.
func asUser(userID int64) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID != 0 {
				r = r.WithContext(middleware.WithUserID(r.Context(), userID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func newRouter(f *fixture, userID int64) *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(asUser(userID))
	NewHandler(f.svc, logger.Nop()).Routes(api)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerStartSubmitGet(t *testing.T) {
	f := newFixture(t)
	r := newRouter(f, 1)

	rec := do(t, r, http.MethodPost, "/api/v1/quizzes/10/attempts", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var started models.StartAttemptResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	assert.Equal(t, models.AttemptInProgress, started.Status)

	id := strconv.FormatInt(started.AttemptID, 10)
	rec = do(t, r, http.MethodPost, "/api/v1/quiz-attempts/"+id+"/submit",
		`{"responses":[{"question_id":1,"selected_option":"A"},{"question_id":2,"selected_option":"B"}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var submitted models.SubmitAttemptResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &submitted))
	assert.Equal(t, 50, submitted.Attempt.Score)
	assert.Equal(t, 3, submitted.Attempt.XPAwarded)
	require.NotNil(t, submitted.Rewards)
	assert.NotContains(t, rec.Body.String(), "correct_option")

	rec = do(t, r, http.MethodGet, "/api/v1/quiz-attempts/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view models.AttemptView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, models.AttemptCompleted, view.Status)
	assert.Len(t, view.Questions, 4)
}

func TestHandlerErrors(t *testing.T) {
	f := newFixture(t)
	owner := newRouter(f, 1)

	rec := do(t, owner, http.MethodPost, "/api/v1/practice-tests/20/attempts", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var started models.StartAttemptResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	path := "/api/v1/practice-test-attempts/" + strconv.FormatInt(started.AttemptID, 10)

	t.Run("foreign question ids", func(t *testing.T) {
		rec := do(t, owner, http.MethodPost, path+"/submit", `{"responses":[{"question_id":42,"selected_option":"A"}]}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		var body models.ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, []int64{42}, body.QuestionIDs)
	})

	t.Run("empty responses", func(t *testing.T) {
		rec := do(t, owner, http.MethodPost, path+"/submit", `{"responses":[]}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad body", func(t *testing.T) {
		rec := do(t, owner, http.MethodPost, path+"/submit", `{`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		rec := do(t, owner, http.MethodGet, "/api/v1/practice-test-attempts/abc", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("other user", func(t *testing.T) {
		rec := do(t, newRouter(f, 2), http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("missing assessment", func(t *testing.T) {
		rec := do(t, owner, http.MethodPost, "/api/v1/quizzes/404/attempts", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		rec := do(t, newRouter(f, 0), http.MethodGet, path, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
