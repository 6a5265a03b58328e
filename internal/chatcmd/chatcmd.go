// Package chatcmd is a chat-style adapter: one line of text in, one
// reply out. It resolves the sender by external id and dispatches to
// the command surface.
package chatcmd

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"okinoko-rps/internal/match"
	"okinoko-rps/internal/service"
)

// Dispatcher routes slash commands for one chat backend.
type Dispatcher struct {
	svc *service.Service
	log *zap.Logger
}

// New builds a dispatcher.
func New(svc *service.Service, log *zap.Logger) *Dispatcher {
	return &Dispatcher{svc: svc, log: log}
}

// Sender identifies the chat user issuing a command.
type Sender struct {
	ExternalID  int64
	DisplayName string
}

const helpText = `Commands:
/start               register
/play [bestOf]       create a quick match (odd bestOf, default 1)
/private [bestOf]    create a private match, share its id
/join [matchId]      join an open quick match, or a specific one
/rock /paper /scissors  play your move
/match               show your current match
/stats               show your record
/recent              show your last matches
/cancel              cancel your match while it waits for an opponent
/resign              concede your current match
/help                this text`

// Handle processes one incoming line and returns the reply text.
// Lines that are not commands return "".
func (d *Dispatcher) Handle(ctx context.Context, from Sender, line string) string {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return ""
	}
	cmd := nextField(&line)

	if cmd == "/start" {
		p, err := d.svc.RegisterPlayer(ctx, from.ExternalID, from.DisplayName)
		if err != nil {
			return renderErr(err)
		}
		return "Welcome, " + p.DisplayName + ". /play to find a match, /help for everything else."
	}
	if cmd == "/help" {
		return helpText
	}

	p, err := d.svc.PlayerByExternalID(ctx, from.ExternalID)
	if err != nil {
		if match.KindOf(err) == match.KindNotFound {
			return "You are not registered yet. Send /start first."
		}
		return renderErr(err)
	}

	switch cmd {
	case "/play", "/private":
		bestOf := 0
		if arg := nextField(&line); arg != "" {
			bestOf, err = strconv.Atoi(arg)
			if err != nil {
				return "bestOf must be a number, e.g. /play 3"
			}
		}
		var v *match.View
		if cmd == "/play" {
			v, err = d.svc.CreateQuickMatch(ctx, p.ID, bestOf)
		} else {
			v, err = d.svc.CreatePrivateMatch(ctx, p.ID, bestOf)
		}
		if err != nil {
			return renderErr(err)
		}
		if cmd == "/private" {
			return "Private match created. Your opponent joins with /join " + v.MatchID
		}
		return "Match created (best of " + strconv.Itoa(v.BestOf) + "). Waiting for an opponent."

	case "/join":
		var v *match.View
		if id := nextField(&line); id != "" {
			v, err = d.svc.JoinMatchByID(ctx, p.ID, id)
		} else {
			v, err = d.svc.JoinOpenQuickMatch(ctx, p.ID)
		}
		if err != nil {
			return renderErr(err)
		}
		return "Joined against " + v.Opponent.PlayerID + ". Best of " +
			strconv.Itoa(v.BestOf) + ". Play /rock, /paper or /scissors."

	case "/rock", "/paper", "/scissors":
		id, ok := d.svc.CurrentMatchID(p.ID)
		if !ok {
			return "You have no match in progress. /play to start one."
		}
		v, err := d.svc.SubmitMove(ctx, p.ID, id, strings.TrimPrefix(cmd, "/"))
		if err != nil {
			return renderErr(err)
		}
		return renderAfterMove(v)

	case "/match":
		id, ok := d.svc.CurrentMatchID(p.ID)
		if !ok {
			return "You have no match in progress."
		}
		v, err := d.svc.GetMatchView(ctx, p.ID, id)
		if err != nil {
			return renderErr(err)
		}
		return renderView(v)

	case "/stats":
		sv, err := d.svc.GetPlayerStats(ctx, p.ID)
		if err != nil {
			return renderErr(err)
		}
		return renderStats(p.DisplayName, sv)

	case "/recent":
		sums, err := d.svc.ListRecentMatches(ctx, p.ID, 5)
		if err != nil {
			return renderErr(err)
		}
		return renderRecent(p.ID, sums)

	case "/cancel":
		id, ok := d.svc.CurrentMatchID(p.ID)
		if !ok {
			return "You have no match to cancel."
		}
		if _, err := d.svc.CancelMatch(ctx, p.ID, id); err != nil {
			return renderErr(err)
		}
		return "Match cancelled."

	case "/resign":
		id, ok := d.svc.CurrentMatchID(p.ID)
		if !ok {
			return "You have no match to resign."
		}
		v, err := d.svc.ResignMatch(ctx, p.ID, id)
		if err != nil {
			return renderErr(err)
		}
		return "You resigned. " + v.Opponent.PlayerID + " wins."

	default:
		return "Unknown command " + cmd + ". /help lists everything."
	}
}

// nextField takes the next space-separated token off the line.
func nextField(s *string) string {
	*s = strings.TrimSpace(*s)
	i := strings.IndexByte(*s, ' ')
	if i < 0 {
		f := *s
		*s = ""
		return f
	}
	f := (*s)[:i]
	*s = (*s)[i+1:]
	return f
}
