package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	. "github.com/pcphq/pcp/apps/api/echo"
	"github.com/pcphq/pcp/core"
	"github.com/pcphq/pcp/core/notification"
	"github.com/pcphq/pcp/core/project"
	"github.com/pcphq/pcp/core/task"
	"github.com/pcphq/pcp/core/user"
	dummydb "github.com/pcphq/pcp/storage/database/dummy"
	testutil "github.com/pcphq/pcp/tests"
)

type env struct {
	app     Server
	usrRepo user.Repository
	prjRepo project.Repository
	tskRepo task.Repository
	ntfRepo notification.Repository
}

func setup(t *testing.T) *env {
	t.Helper()

	conf := &core.Config{
		TestMode:  true,
		Env:       "TEST",
		AppName:   "PCP",
		SecretKey: "secret",
		Server: core.ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
		Notification: core.NotificationConfig{
			SweepWindow: 48 * time.Hour,
			EventWindow: 24 * time.Hour,
		},
	}

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	e := &env{
		usrRepo: dummydb.NewUserRepository(db),
		prjRepo: dummydb.NewProjectRepository(db),
		tskRepo: dummydb.NewTaskRepository(db),
		ntfRepo: dummydb.NewNotificationRepository(db),
	}

	clock := core.NewClock()
	logger := testutil.Logger{}
	engine := notification.NewEngine(notification.EngineDeps{
		Conf:       conf.Notification,
		Clock:      clock,
		Projects:   e.prjRepo,
		Tasks:      e.tskRepo,
		Ledger:     dummydb.NewLedger(db),
		Resolver:   notification.NewResolver(e.prjRepo, e.tskRepo),
		Dispatcher: notification.NewDispatcher(e.ntfRepo, clock, logger),
		Logger:     logger,
	})

	prjSvc := project.NewService(e.prjRepo, engine, logger)

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	project.InitValidators(validate, translator)
	task.InitValidators(validate, translator)

	e.app = NewServer(ServerDeps{
		Conf:       conf,
		Logger:     logger,
		UserSvc:    user.NewService(e.usrRepo),
		ProjectSvc: prjSvc,
		TaskSvc:    task.NewService(e.tskRepo, prjSvc, engine, logger),
		NotifSvc:   notification.NewService(e.ntfRepo),
		Validate:   validate,
		Translator: translator,
	})
	return e
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

type httpErr struct {
	Error string `json:"error"`
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := GenerateToken(GetUserClaims(usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}

// jsonBytesEqual compares two JSON payloads structurally, ignoring list order.
func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}
