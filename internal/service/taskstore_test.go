package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"post_drafter/internal/domain"
	"post_drafter/internal/service/mocks"
	"post_drafter/internal/storage/file"
	"post_drafter/internal/testutil"
)

type TaskStoreTestSuite struct {
	suite.Suite
	ctrl   *gomock.Controller
	ctx    context.Context
	source *mocks.MockSource
	docs   *file.DocumentStore
	store  *TaskStore
}

func (s *TaskStoreTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.ctx = context.Background()
	s.source = mocks.NewMockSource(s.ctrl)
	s.source.EXPECT().ID().Return("test-source").AnyTimes()
	s.docs = newDocs(s.T())
	s.store = NewTaskStore(s.source, s.docs, discardLogger())
	s.store.now = func() time.Time { return at(100) }
}

func (s *TaskStoreTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestTaskStoreTestSuite(t *testing.T) {
	suite.Run(t, new(TaskStoreTestSuite))
}

func (s *TaskStoreTestSuite) reload() *TaskStore {
	fresh := NewTaskStore(s.source, s.docs, discardLogger())
	s.Require().NoError(fresh.LoadPersisted(s.ctx))
	return fresh
}

func (s *TaskStoreTestSuite) TestLoad_FlattensAndSorts() {
	late := newTask("late", domain.TaskNeedsAction, at(5))
	withDue := newTask("due", domain.TaskNeedsAction, at(9))
	withDue.Due = testutil.Ptr(at(1))
	withDue.Notes = testutil.Ptr("bring paint")
	created := newTask("created", domain.TaskNeedsAction, at(9))
	created.Created = testutil.Ptr(at(3))

	s.source.EXPECT().FetchTasks(s.ctx).Return([]domain.TaskGroup{
		{Name: "Home", Tasks: []domain.TaskRecord{late, withDue}},
		{Name: "Work", Tasks: []domain.TaskRecord{created}},
	}, nil)

	s.Require().NoError(s.store.Load(s.ctx))

	tasks := s.store.Tasks()
	s.Require().Len(tasks, 3)
	s.Equal("due", tasks[0].ID)
	s.Equal("created", tasks[1].ID)
	s.Equal("late", tasks[2].ID)

	s.Equal("Home", tasks[0].GroupName)
	s.Equal("Home: task due - bring paint", tasks[0].Overview)
	s.Equal("Work: task created", tasks[1].Overview)
	s.Equal([]string{"Home: task due - bring paint", "Work: task created", "Home: task late"}, s.store.Overviews())
}

func (s *TaskStoreTestSuite) TestLoad_TiesKeepImportOrder() {
	a := newTask("a", domain.TaskNeedsAction, at(1))
	b := newTask("b", domain.TaskNeedsAction, at(1))
	c := newTask("c", domain.TaskNeedsAction, at(1))

	s.source.EXPECT().FetchTasks(s.ctx).Return([]domain.TaskGroup{
		{Name: "G", Tasks: []domain.TaskRecord{b, c, a}},
	}, nil)

	s.Require().NoError(s.store.Load(s.ctx))

	ids := []string{}
	for _, t := range s.store.Tasks() {
		ids = append(ids, t.ID)
	}
	s.Equal([]string{"b", "c", "a"}, ids)
}

func (s *TaskStoreTestSuite) TestLoad_SecondImportKeepsProcessedAt() {
	groups := []domain.TaskGroup{{Name: "G", Tasks: []domain.TaskRecord{
		newTask("X", domain.TaskNeedsAction, at(1)),
		newTask("Y", domain.TaskNeedsAction, at(2)),
	}}}
	s.source.EXPECT().FetchTasks(s.ctx).Return(groups, nil).Times(3)

	s.Require().NoError(s.store.Load(s.ctx))
	s.Require().NoError(s.store.MarkProcessed(s.ctx, []string{"X"}))

	for range 2 {
		store := NewTaskStore(s.source, s.docs, discardLogger())
		s.Require().NoError(store.Load(s.ctx))
		s.Require().NoError(store.Save(s.ctx))

		x, err := store.FindByID("X")
		s.Require().NoError(err)
		s.Require().NotNil(x.ProcessedAt)
		s.True(x.ProcessedAt.Equal(at(100)))

		y, err := store.FindByID("Y")
		s.Require().NoError(err)
		s.Nil(y.ProcessedAt)
	}
}

func (s *TaskStoreTestSuite) TestLoad_NewerImportRefreshesSourceFields() {
	old := newTask("X", domain.TaskNeedsAction, at(1))
	old.GroupName = "G"
	old.Overview = "G: task X"
	old.ProcessedAt = testutil.Ptr(at(2))
	s.Require().NoError(seedTaskStore(s.docs, []domain.TaskRecord{old}).Save(s.ctx))

	fresh := newTask("X", domain.TaskCompleted, at(5))
	fresh.Title = "renamed"
	s.source.EXPECT().FetchTasks(s.ctx).Return([]domain.TaskGroup{{Name: "G", Tasks: []domain.TaskRecord{fresh}}}, nil)

	s.Require().NoError(s.store.Load(s.ctx))

	x, err := s.store.FindByID("X")
	s.Require().NoError(err)
	s.Equal("renamed", x.Title)
	s.Equal(domain.TaskCompleted, x.Status)
	s.Equal("G: renamed", x.Overview)
	s.True(x.ProcessedAt.Equal(at(2)))
}

func (s *TaskStoreTestSuite) TestLoad_OlderImportDoesNotOverwrite() {
	kept := newTask("X", domain.TaskNeedsAction, at(5))
	kept.Title = "edited locally"
	kept.GroupName = "G"
	s.Require().NoError(seedTaskStore(s.docs, []domain.TaskRecord{kept}).Save(s.ctx))

	stale := newTask("X", domain.TaskNeedsAction, at(1))
	stale.Title = "stale"
	stale.Notes = testutil.Ptr("new notes")
	s.source.EXPECT().FetchTasks(s.ctx).Return([]domain.TaskGroup{{Name: "G", Tasks: []domain.TaskRecord{stale}}}, nil)

	s.Require().NoError(s.store.Load(s.ctx))

	x, err := s.store.FindByID("X")
	s.Require().NoError(err)
	s.Equal("edited locally", x.Title)
	s.Require().NotNil(x.Notes)
	s.Equal("new notes", *x.Notes)
}

func (s *TaskStoreTestSuite) TestLoad_KeepsPersistedOnlyRecordsAfterImport() {
	gone := newTask("gone", domain.TaskNeedsAction, at(0))
	s.Require().NoError(seedTaskStore(s.docs, []domain.TaskRecord{gone}).Save(s.ctx))

	s.source.EXPECT().FetchTasks(s.ctx).Return([]domain.TaskGroup{{Name: "G", Tasks: []domain.TaskRecord{
		newTask("new", domain.TaskNeedsAction, at(3)),
	}}}, nil)

	s.Require().NoError(s.store.Load(s.ctx))

	tasks := s.store.Tasks()
	s.Require().Len(tasks, 2)
	s.Equal("new", tasks[0].ID)
	s.Equal("gone", tasks[1].ID)
}

func (s *TaskStoreTestSuite) TestLoad_PersistedOnlyRecordsAreNotResorted() {
	early := newTask("early", domain.TaskNeedsAction, at(0))
	s.Require().NoError(seedTaskStore(s.docs, []domain.TaskRecord{early}).Save(s.ctx))

	s.source.EXPECT().FetchTasks(s.ctx).Return([]domain.TaskGroup{{Name: "G", Tasks: []domain.TaskRecord{
		newTask("B", domain.TaskNeedsAction, at(4)),
		newTask("A", domain.TaskNeedsAction, at(2)),
	}}}, nil)

	s.Require().NoError(s.store.Load(s.ctx))

	selected, err := NewSelector(s.store).SelectNext(3)
	s.Require().NoError(err)
	s.Equal([]string{"A", "B", "early"}, ids(selected))
}

func (s *TaskStoreTestSuite) TestPersistedTaskStore_LoadsWithoutSource() {
	processed := newTask("X", domain.TaskNeedsAction, at(1))
	processed.ProcessedAt = testutil.Ptr(at(2))
	s.Require().NoError(seedTaskStore(s.docs, []domain.TaskRecord{processed}).Save(s.ctx))

	store := newPersistedTaskStore(s.docs, discardLogger())
	s.Require().NoError(store.LoadPersisted(s.ctx))

	x, err := store.FindByID("X")
	s.Require().NoError(err)
	s.True(x.ProcessedAt.Equal(at(2)))
	s.Error(store.MarkProcessed(s.ctx, []string{"missing"}))
}

func (s *TaskStoreTestSuite) TestLoad_CorruptDocument() {
	s.Require().NoError(s.docs.Put(s.ctx, KeyTasks, []byte(`{"not":"a list"}`)))
	s.source.EXPECT().FetchTasks(s.ctx).Return(nil, nil)

	err := s.store.Load(s.ctx)
	s.ErrorIs(err, domain.ErrCorruptState)
}

func (s *TaskStoreTestSuite) TestLoad_InvalidRecord() {
	s.Require().NoError(s.docs.Put(s.ctx, KeyTasks, []byte(`[{"id":"X","status":"bogus","updated":"2024-01-01T00:00:00Z"}]`)))
	s.source.EXPECT().FetchTasks(s.ctx).Return(nil, nil)

	err := s.store.Load(s.ctx)
	s.ErrorIs(err, domain.ErrCorruptState)
}

func (s *TaskStoreTestSuite) TestLoad_SourceError() {
	s.source.EXPECT().FetchTasks(s.ctx).Return(nil, errors.New("file missing"))

	err := s.store.Load(s.ctx)
	s.Error(err)
	s.Contains(err.Error(), "fetch tasks")
}

func (s *TaskStoreTestSuite) TestMarkProcessed_UnknownIDChangesNothing() {
	s.source.EXPECT().FetchTasks(s.ctx).Return([]domain.TaskGroup{{Name: "G", Tasks: []domain.TaskRecord{
		newTask("A", domain.TaskNeedsAction, at(1)),
	}}}, nil)
	s.Require().NoError(s.store.Load(s.ctx))
	s.Require().NoError(s.store.Save(s.ctx))

	err := s.store.MarkProcessed(s.ctx, []string{"A", "missing"})
	s.ErrorIs(err, domain.ErrNotFound)

	a, err := s.store.FindByID("A")
	s.Require().NoError(err)
	s.Nil(a.ProcessedAt)

	persisted, err := s.reload().FindByID("A")
	s.Require().NoError(err)
	s.Nil(persisted.ProcessedAt)
}

func (s *TaskStoreTestSuite) TestMarkProcessed_KeepsFirstTimestamp() {
	s.source.EXPECT().FetchTasks(s.ctx).Return([]domain.TaskGroup{{Name: "G", Tasks: []domain.TaskRecord{
		newTask("A", domain.TaskNeedsAction, at(1)),
	}}}, nil)
	s.Require().NoError(s.store.Load(s.ctx))

	s.Require().NoError(s.store.MarkProcessed(s.ctx, []string{"A"}))
	s.store.now = func() time.Time { return at(200) }
	s.Require().NoError(s.store.MarkProcessed(s.ctx, []string{"A"}))

	a, err := s.reload().FindByID("A")
	s.Require().NoError(err)
	s.Require().NotNil(a.ProcessedAt)
	s.True(a.ProcessedAt.Equal(at(100)))
}

func (s *TaskStoreTestSuite) TestSave_EmptyStoreWritesEmptyList() {
	s.Require().NoError(s.store.Save(s.ctx))

	data, found, err := s.docs.Get(s.ctx, KeyTasks)
	s.Require().NoError(err)
	s.True(found)
	s.JSONEq(`[]`, string(data))
}

func (s *TaskStoreTestSuite) TestTasks_ReturnsCopy() {
	s.source.EXPECT().FetchTasks(s.ctx).Return([]domain.TaskGroup{{Name: "G", Tasks: []domain.TaskRecord{
		newTask("A", domain.TaskNeedsAction, at(1)),
	}}}, nil)
	s.Require().NoError(s.store.Load(s.ctx))

	tasks := s.store.Tasks()
	tasks[0].Title = "mutated"

	a, err := s.store.FindByID("A")
	s.Require().NoError(err)
	s.Equal("task A", a.Title)
}

// seedTaskStore builds a store without a source, for arranging persisted state.
func seedTaskStore(docs DocumentStore, tasks []domain.TaskRecord) *TaskStore {
	store := &TaskStore{docs: docs, logger: discardLogger(), now: time.Now}
	store.setTasks(tasks)
	return store
}
