package controller

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sage_edu_backend/internal/config"
	"sage_edu_backend/internal/model"
	"sage_edu_backend/internal/repository"
	"sage_edu_backend/internal/service"
	"sage_edu_backend/internal/testutil"
	"sage_edu_backend/internal/util"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type builderFixture struct {
	router  *gin.Engine
	db      *gorm.DB
	teacher *model.User
	course  *model.Course
}

// newBuilderFixture 以固定身份注入用户，绕过 JWT
func newBuilderFixture(t *testing.T, llm *httptest.Server) *builderFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.DB(t)
	cfg := &config.Config{Builder: config.BuilderConfig{DefaultDurationMinutes: 5, PointsPerMinute: 2, MaxPosition: 50}}
	moduleRepo := repository.NewCourseModuleRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	builder := service.NewCourseBuilderService(moduleRepo, courseRepo, nil, cfg)

	aiCfg := config.AIConfig{APIKey: "k", Model: "m", TimeoutSeconds: 5}
	if llm != nil {
		aiCfg.BaseURL = llm.URL
	}
	ai := service.NewAIService(aiCfg)

	bc := NewCourseBuilderController(builder, service.NewMediaService(builder, &service.StorageService{
		Provider: &service.LocalStorageProvider{Root: t.TempDir()},
	}), service.NewBuilderHub(nil, builder))
	aic := NewAIController(service.NewGenerationService(ai, builder, courseRepo), nil)

	f := &builderFixture{db: db}
	f.teacher = testutil.CreateUser(t, db, "teacher", model.Teacher)
	f.course = testutil.CreateCourse(t, db, f.teacher.ID, "Chemistry")

	r := gin.New()
	r.Use(func(c *gin.Context) {
		role := model.UserRole(c.GetHeader("X-Test-Role"))
		if role == "" {
			role = model.Teacher
		}
		uid := f.teacher.ID
		if c.GetHeader("X-Test-Other") != "" {
			uid = f.teacher.ID + 1000
		}
		c.Set(util.ContextUserKey, &util.Claims{UserID: uid, Role: role})
	})
	r.GET("/api/modules/types", bc.ModuleTypes)
	r.GET("/api/teacher/courses/:id/timeline", bc.GetTimeline)
	r.POST("/api/teacher/courses/:id/modules", bc.CreateModule)
	r.PATCH("/api/teacher/modules/:id", bc.UpdateModule)
	r.PUT("/api/teacher/modules/:id/position", bc.MoveModule)
	r.DELETE("/api/teacher/modules/:id", bc.DeleteModule)
	r.POST("/api/ai/generate", aic.Generate)
	f.router = r
	return f
}

func (f *builderFixture) do(method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	var resp struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NoError(t, json.Unmarshal(resp.Data, out))
}

func TestModuleTypesEndpoint(t *testing.T) {
	f := newBuilderFixture(t, nil)
	w := f.do(http.MethodGet, "/api/modules/types", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var types []model.ModuleTypeInfo
	decodeData(t, w, &types)
	require.Len(t, types, 6)
	assert.Equal(t, model.ModuleContent, types[0].Type)
}

func TestBuilderEndpointsLifecycle(t *testing.T) {
	f := newBuilderFixture(t, nil)
	base := "/api/teacher/courses/" + f.course.ID

	w := f.do(http.MethodPost, base+"/modules", gin.H{"moduleType": "quiz", "timelinePosition": 0})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var quiz model.CourseModule
	decodeData(t, w, &quiz)
	assert.Equal(t, 5, quiz.DurationMinutes)

	w = f.do(http.MethodPost, base+"/modules", gin.H{"moduleType": "game", "timelinePosition": 0})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(http.MethodPost, base+"/modules", gin.H{"moduleType": "podcast", "timelinePosition": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPatch, "/api/teacher/modules/"+quiz.ID, gin.H{"title": "Atoms quiz", "durationMinutes": 12})
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodPatch, "/api/teacher/modules/"+quiz.ID, gin.H{"durationMinutes": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPut, "/api/teacher/modules/"+quiz.ID+"/position", gin.H{"position": 3})
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodGet, base+"/timeline", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var view service.TimelineView
	decodeData(t, w, &view)
	require.Len(t, view.Slots, 5)
	assert.Equal(t, 12, view.TotalMinutes)
	require.Len(t, view.Slots[3].Modules, 1)
	assert.Equal(t, "Atoms quiz", view.Slots[3].Modules[0].Title)

	w = f.do(http.MethodDelete, "/api/teacher/modules/"+quiz.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = f.do(http.MethodDelete, "/api/teacher/modules/"+quiz.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBuilderEndpointsRequireOwnership(t *testing.T) {
	f := newBuilderFixture(t, nil)
	m := testutil.CreateModule(t, f.db, f.course.ID, model.ModuleContent, 0)

	w := f.do(http.MethodGet, "/api/teacher/courses/"+f.course.ID+"/timeline", nil, "X-Test-Other", "1")
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = f.do(http.MethodDelete, "/api/teacher/modules/"+m.ID, nil, "X-Test-Other", "1")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(http.MethodGet, "/api/teacher/courses/missing/timeline", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGenerateReportsUpstreamFailure(t *testing.T) {
	llm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusServiceUnavailable)
	}))
	defer llm.Close()

	f := newBuilderFixture(t, llm)
	m := testutil.CreateModule(t, f.db, f.course.ID, model.ModuleQuiz, 0)

	w := f.do(http.MethodPost, "/api/ai/generate", gin.H{"type": "quiz", "prompt": "atoms", "moduleId": m.ID})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "generation failed")

	var stored model.CourseModule
	require.NoError(t, f.db.First(&stored, "id = ?", m.ID).Error)
	assert.Empty(t, stored.AIContent)
}

func TestStoreFailureIsOpaque(t *testing.T) {
	f := newBuilderFixture(t, nil)
	sqlDB, err := f.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	w := f.do(http.MethodGet, "/api/teacher/courses/"+f.course.ID+"/timeline", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "operation failed")
}

func TestBuilderEndpointsRejectPositionBeyondLimit(t *testing.T) {
	f := newBuilderFixture(t, nil)
	base := "/api/teacher/courses/" + f.course.ID
	m := testutil.CreateModule(t, f.db, f.course.ID, model.ModuleContent, 0)

	w := f.do(http.MethodPut, "/api/teacher/modules/"+m.ID+"/position", gin.H{"position": math.MaxInt})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = f.do(http.MethodPut, "/api/teacher/modules/"+m.ID+"/position", gin.H{"position": 51})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = f.do(http.MethodPatch, "/api/teacher/modules/"+m.ID, gin.H{"timelinePosition": 1_000_000_000})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = f.do(http.MethodPost, base+"/modules", gin.H{"moduleType": "quiz", "timelinePosition": 51})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var stored model.CourseModule
	require.NoError(t, f.db.First(&stored, "id = ?", m.ID).Error)
	assert.Equal(t, 0, stored.TimelinePosition)

	w = f.do(http.MethodPut, "/api/teacher/modules/"+m.ID+"/position", gin.H{"position": 50})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTimelineSurvivesStoredOutOfRangePosition(t *testing.T) {
	f := newBuilderFixture(t, nil)
	m := testutil.CreateModule(t, f.db, f.course.ID, model.ModuleVideo, 0)
	require.NoError(t, f.db.Model(&model.CourseModule{}).Where("id = ?", m.ID).
		Update("timeline_position", 1_000_000_000).Error)

	w := f.do(http.MethodGet, "/api/teacher/courses/"+f.course.ID+"/timeline", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var view service.TimelineView
	decodeData(t, w, &view)
	require.Len(t, view.Slots, model.MaxTimelinePosition+2)
	require.Len(t, view.Slots[model.MaxTimelinePosition].Modules, 1)
	assert.Equal(t, m.ID, view.Slots[model.MaxTimelinePosition].Modules[0].ID)

	// 可以把它拖回合法位置
	w = f.do(http.MethodPut, "/api/teacher/modules/"+m.ID+"/position", gin.H{"position": 2})
	assert.Equal(t, http.StatusOK, w.Code)
}
