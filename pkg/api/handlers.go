package api

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/itohio/envmon/pkg/alarm"
	"github.com/itohio/envmon/pkg/display"
)

// Plain-text bodies the dashboard scripts match on.
const (
	respOK       = "OK"
	respFail     = "FAIL"
	respAlarmOn  = "ALARM_ON"
	respAlarmOff = "ALARM_OFF_RESET"
	respMissing  = "missing parameter"
	respInvalid  = "invalid value"
	respBadState = "invalid state"
)

// settingsParams maps query parameters to threshold fields, in the order
// they are looked up. Only the first present parameter is applied.
var settingsParams = []struct {
	param string
	field alarm.Field
}{
	{"threshold", alarm.FieldGas},
	{"dbThreshold", alarm.FieldSoundThreshold},
	{"dbCorrection", alarm.FieldSoundCorrection},
}

func (s *Server) handleLogin(c *gin.Context) {
	user, hasUser := c.GetQuery("user")
	pass, hasPass := c.GetQuery("pass")
	if !hasUser || !hasPass {
		s.serveAsset("login.html")(c)
		return
	}

	if equal(user, s.cfg.User) && equal(pass, s.cfg.Password) {
		c.String(http.StatusOK, respOK)
		return
	}
	s.logger.Info("login rejected", zap.String("user", user), zap.String("client_ip", c.ClientIP()))
	c.String(http.StatusUnauthorized, respFail)
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) handleSettings(c *gin.Context) {
	for _, p := range settingsParams {
		raw, ok := c.GetQuery(p.param)
		if !ok {
			continue
		}

		value, err := parseValue(p.field, raw)
		if err != nil {
			c.String(http.StatusBadRequest, respInvalid)
			return
		}
		if err := s.engine.SetThreshold(p.field, value); err != nil {
			if errors.Is(err, alarm.ErrOutOfRange) || errors.Is(err, alarm.ErrUnknownField) {
				c.String(http.StatusBadRequest, err.Error())
				return
			}
			c.String(http.StatusInternalServerError, err.Error())
			return
		}
		c.String(http.StatusOK, respOK)
		return
	}
	c.String(http.StatusBadRequest, respMissing)
}

// parseValue accepts whole numbers for the gas percentage and decimals
// for the sound fields.
func parseValue(field alarm.Field, raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if field == alarm.FieldGas {
		n, err := strconv.Atoi(raw)
		return float64(n), err
	}
	return strconv.ParseFloat(raw, 64)
}

func (s *Server) handleAlarm(c *gin.Context) {
	state, ok := c.GetQuery("state")
	if !ok {
		c.String(http.StatusBadRequest, respMissing)
		return
	}

	switch state {
	case "on":
		s.engine.SetArmed(true)
		c.String(http.StatusOK, respAlarmOn)
	case "off":
		s.engine.SetArmed(false)
		c.String(http.StatusOK, respAlarmOff)
	default:
		c.String(http.StatusBadRequest, respBadState)
	}
}

func (s *Server) handleData(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Data())
}

func (s *Server) handleDisplay(c *gin.Context) {
	lines := display.Lines(s.engine.Peek())
	c.String(http.StatusOK, strings.Join(lines, "\n")+"\n")
}

func (s *Server) handleHealth(c *gin.Context) {
	d := s.engine.Peek()
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"state":  d.State().String(),
		"uptime": time.Since(s.startTime).Round(time.Second).String(),
	})
}
