package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	Symbol string  `json:"symbol" validate:"required"`
	Price  float64 `json:"price" validate:"gt=0"`
}

type batch struct {
	Points []point `json:"points" validate:"required,min=1,dive"`
	Days   int     `query:"days" json:"-" default:"30" validate:"gte=1,lte=365"`
}

func bind(t *testing.T, target, body string) (*batch, interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := echo.New().NewContext(req, httptest.NewRecorder())
	var b batch
	return &b, ReadAndValidateRequest(c, &b)
}

func TestReadAndValidateAppliesDefaults(t *testing.T) {
	b, verr := bind(t, "/", `{"points":[{"symbol":"BTC","price":1}]}`)
	require.Nil(t, verr)
	assert.Equal(t, 30, b.Days)
}

func TestReadAndValidateReportsWirePaths(t *testing.T) {
	_, verr := bind(t, "/?days=400", `{"points":[{"symbol":"BTC","price":1},{"symbol":"","price":0}]}`)
	require.NotNil(t, verr)
	got := verr.([]ValidationError)

	fields := make(map[string]string, len(got))
	for _, e := range got {
		fields[e.Field] = e.Code
	}
	assert.Equal(t, "ERR_REQUIRED", fields["points[1].symbol"])
	assert.Equal(t, "ERR_GT", fields["points[1].price"])
	assert.Equal(t, "ERR_LTE", fields["days"])
}

func TestReadAndValidateMalformedBody(t *testing.T) {
	_, verr := bind(t, "/", `{"points":`)
	require.NotNil(t, verr)
	assert.Equal(t, "ERR_MALFORMED_REQUEST", verr.([]ValidationError)[0].Code)
}
