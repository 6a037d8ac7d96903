package notify

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/quantframe/papertrade/internal/logger"
	"github.com/quantframe/papertrade/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type NotifierTestSuite struct {
	suite.Suite
}

func TestNotifierTestSuite(t *testing.T) {
	suite.Run(t, new(NotifierTestSuite))
}

func (suite *NotifierTestSuite) TestWebhookDeliversPayload() {
	var received webhookPayload

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		suite.Equal("application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		suite.Require().NoError(err)
		suite.Require().NoError(json.Unmarshal(body, &received))

		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier(server.URL)
	err := notifier.SendMessage("signal 700.HK BUY", "price: 50.0")

	suite.NoError(err)
	suite.Equal("signal 700.HK BUY", received.Title)
	suite.Equal("price: 50.0", received.Content)
	suite.False(received.SentAt.IsZero())
}

func (suite *NotifierTestSuite) TestWebhookReportsHTTPErrors() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	err := NewWebhookNotifier(server.URL).SendMessage("t", "c")

	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeNotifyFailed))
}

func (suite *NotifierTestSuite) TestWebhookReportsTransportErrors() {
	notifier := NewWebhookNotifier("http://127.0.0.1:1")

	err := notifier.SendMessage("t", "c")

	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeNotifyFailed))
}

func (suite *NotifierTestSuite) TestEmptyURLIsDisabled() {
	suite.NoError(NewWebhookNotifier("").SendMessage("t", "c"))
}

func (suite *NotifierTestSuite) TestLogNotifierNeverFails() {
	suite.NoError(NewLogNotifier(logger.NewNopLogger()).SendMessage("t", "c"))
	suite.NoError(NewLogNotifier(nil).SendMessage("t", "c"))
}
