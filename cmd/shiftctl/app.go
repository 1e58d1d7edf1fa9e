package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"shiftpos/internal/infra"
	"shiftpos/internal/middleware"
	"shiftpos/internal/model"
	"shiftpos/internal/service"
	"shiftpos/internal/session"
	"shiftpos/internal/till"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

var errStale = errors.New("backend unavailable: showing the last saved snapshot, changes are not possible right now")

// app is the state of one CLI invocation.
type app struct {
	v       *viper.Viper
	out     io.Writer
	store   *session.Store
	sess    *session.Session
	machine *service.ShiftMachine
	stale   bool
	cleared bool
}

func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "shiftctl", "session.db")
}

// cashierFromToken reads user_id without verifying the signature; the
// backend verifies every request.
func cashierFromToken(token string) (uuid.UUID, error) {
	claims := &middleware.JWTClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return uuid.Nil, fmt.Errorf("unreadable token: %w", err)
	}
	return claims.CashierID()
}

// open loads the session and refreshes the shift from the backend.
func (a *app) open(ctx context.Context) (err error) {
	store, err := session.Open(a.v.GetString("session_path"))
	if err != nil {
		return err
	}
	a.store = store
	defer func() {
		if err != nil {
			store.Close()
			a.store = nil
		}
	}()

	sess, err := store.Load()
	if err != nil {
		return err
	}
	if token := a.v.GetString("token"); token != "" && (sess == nil || sess.Token != token) {
		cashierID, terr := cashierFromToken(token)
		if terr != nil {
			return terr
		}
		sess = &session.Session{Token: token, CashierID: cashierID}
	}
	if sess == nil {
		return errors.New("not logged in: pass --token or set SHIFTCTL_TOKEN")
	}
	if url := a.v.GetString("api_url"); url != "" {
		sess.APIURL = url
	}
	if sess.APIURL == "" {
		return errors.New("no backend: pass --api-url or set SHIFTCTL_API_URL")
	}
	a.sess = sess

	client := infra.NewShiftBackendClient(sess.APIURL, sess.Token, a.v.GetDuration("timeout"), infra.NewCircuitBreaker(infra.BackendBreakerConfig()))
	a.machine = service.NewShiftMachine(client, sess.CashierID)
	a.machine.Restore(sess.Shift)

	if rerr := a.machine.Refresh(ctx); rerr != nil {
		if !errors.Is(rerr, till.ErrCollaboratorUnavailable) {
			return rerr
		}
		log.Warn().Err(rerr).Msg("backend unreachable, using saved snapshot")
		a.stale = true
	}
	return nil
}

// close persists the latest known-good snapshot unless the session was
// cleared by logout. It runs after every command, failed ones included.
func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	defer func() {
		a.store.Close()
		a.store = nil
	}()
	if a.cleared || a.sess == nil || a.stale {
		return nil
	}
	a.sess.Shift = a.machine.Current()
	return a.store.Save(a.sess)
}

func (a *app) mutable() error {
	if a.stale {
		return errStale
	}
	return nil
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *app) printShift(s *model.Shift) {
	if s == nil {
		a.printf("No shift on record.\n")
		return
	}
	if a.stale {
		a.printf("(stale snapshot, backend unavailable)\n")
	}
	a.printf("Shift     %s\n", s.ID)
	a.printf("Status    %s\n", s.Status)
	a.printf("Started   %s\n", s.StartTime.Local().Format(time.DateTime))
	a.printf("Opening   %s\n", s.OpeningBalance.StringFixed(2))
	if s.IsClosed() {
		if s.EndTime != nil {
			a.printf("Ended     %s\n", s.EndTime.Local().Format(time.DateTime))
		}
		if s.ExpectedCash != nil {
			a.printf("Expected  %s\n", s.ExpectedCash.StringFixed(2))
		}
		if s.Variance != nil {
			a.printf("Variance  %s\n", s.Variance.StringFixed(2))
		}
		return
	}
	a.printf("Expected  %s\n", till.ExpectedCash(s).StringFixed(2))
	if b := till.NewBreakTracker(&s.Breaks).ActiveBreak(); b != nil {
		a.printf("On %s break since %s.\n", b.Type, b.StartTime.Local().Format(time.TimeOnly))
		a.printf("Resume from break with: shiftctl break end\n")
	}
}
