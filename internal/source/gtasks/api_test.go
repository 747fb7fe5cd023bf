package gtasks

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
	"google.golang.org/api/option"
	"google.golang.org/api/tasks/v1"

	"post_drafter/internal/domain"
)

type APISourceSuite struct {
	suite.Suite
	server *httptest.Server
	source *APISource
	failOn string
}

func (s *APISourceSuite) SetupTest() {
	s.failOn = ""

	mux := http.NewServeMux()
	mux.HandleFunc("/tasks/v1/users/@me/lists", func(w http.ResponseWriter, r *http.Request) {
		if s.failOn == "lists" {
			http.Error(w, "quota exceeded", http.StatusForbidden)
			return
		}
		writeJSON(w, map[string]any{
			"items": []map[string]any{
				{"id": "L1", "title": "Work"},
				{"id": "L2", "title": "Home"},
			},
		})
	})
	mux.HandleFunc("/tasks/v1/lists/", func(w http.ResponseWriter, r *http.Request) {
		s.Equal("true", r.URL.Query().Get("showCompleted"))
		s.Equal("true", r.URL.Query().Get("showDeleted"))

		switch {
		case strings.HasPrefix(r.URL.Path, "/tasks/v1/lists/L1/"):
			if r.URL.Query().Get("pageToken") == "" {
				writeJSON(w, map[string]any{
					"items": []map[string]any{
						{"id": "t1", "title": "First", "updated": "2024-01-01T00:00:00.000Z", "status": "needsAction", "notes": "n"},
					},
					"nextPageToken": "p2",
				})
				return
			}
			writeJSON(w, map[string]any{
				"items": []map[string]any{
					{"id": "t2", "title": "Second", "updated": "2024-01-02T00:00:00.000Z", "status": "completed"},
				},
			})
		case strings.HasPrefix(r.URL.Path, "/tasks/v1/lists/L2/"):
			writeJSON(w, map[string]any{})
		default:
			http.NotFound(w, r)
		}
	})
	s.server = httptest.NewServer(mux)

	service, err := tasks.NewService(context.Background(),
		option.WithEndpoint(s.server.URL+"/"),
		option.WithHTTPClient(s.server.Client()),
	)
	s.Require().NoError(err)

	s.source = NewAPISourceWithService(service, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func (s *APISourceSuite) TearDownTest() {
	s.server.Close()
}

func TestAPISourceSuite(t *testing.T) {
	suite.Run(t, new(APISourceSuite))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (s *APISourceSuite) TestDownload_FollowsPages() {
	backup, err := s.source.Download(context.Background())
	s.Require().NoError(err)
	s.Require().Len(backup, 2)

	s.Equal("Work", backup[0].Name)
	s.Require().Len(backup[0].Tasks, 2)
	s.Equal("t1", backup[0].Tasks[0].ID)
	s.Require().NotNil(backup[0].Tasks[0].Notes)
	s.Equal("n", *backup[0].Tasks[0].Notes)
	s.Equal("t2", backup[0].Tasks[1].ID)

	s.Equal("Home", backup[1].Name)
	s.Empty(backup[1].Tasks)
}

func (s *APISourceSuite) TestFetchTasks_ConvertsToGroups() {
	groups, err := s.source.FetchTasks(context.Background())
	s.Require().NoError(err)
	s.Require().Len(groups, 2)
	s.Len(groups[0].Tasks, 2)
	s.Equal(domain.TaskCompleted, groups[0].Tasks[1].Status)
}

func (s *APISourceSuite) TestDownload_ServerErrorIsTransient() {
	s.failOn = "lists"

	_, err := s.source.Download(context.Background())
	s.Require().Error(err)
	s.ErrorIs(err, domain.ErrTransient)
}
