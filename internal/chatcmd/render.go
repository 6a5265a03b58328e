package chatcmd

import (
	"fmt"
	"strings"

	"okinoko-rps/internal/match"
	"okinoko-rps/internal/stats"
)

// renderErr turns a typed failure into a chat-sized message.
func renderErr(err error) string {
	switch match.KindOf(err) {
	case match.KindInvalidArgument:
		return "Invalid input: " + err.Error()
	case match.KindNotFound:
		return "No such match."
	case match.KindIllegalState:
		return "That is not possible right now: " + err.Error()
	case match.KindNotParticipant:
		return "You are not part of that match."
	case match.KindSelfJoin:
		return "You cannot join your own match."
	case match.KindPlayerBusy:
		return "Finish your current match first."
	case match.KindDoubleSubmit:
		return "You already played this round. Waiting for your opponent."
	case match.KindDeadlineExceeded:
		return "Too late, the round deadline has passed."
	case match.KindNoMatchAvailable:
		return "No open match right now. /play to create one."
	default:
		return "Something went wrong, please try again."
	}
}

func renderAfterMove(v *match.View) string {
	switch v.State {
	case "completed", "timed_out":
		if v.WinnerID == v.You.PlayerID {
			return fmt.Sprintf("You win the match %d-%d!", v.You.Score, v.Opponent.Score)
		}
		if v.WinnerID == "" {
			return "The match ends in a draw."
		}
		return fmt.Sprintf("You lose the match %d-%d.", v.You.Score, v.Opponent.Score)
	}
	if len(v.RoundHistory) > 0 && !v.Opponent.CurrentRoundMoveHidden && v.You.CurrentRoundMove == "" {
		last := v.RoundHistory[len(v.RoundHistory)-1]
		verdict := "Round drawn"
		switch last.Outcome {
		case "p1_win":
			verdict = "You take the round"
		case "p2_win":
			verdict = "Your opponent takes the round"
		}
		return fmt.Sprintf("%s (%s vs %s). Score %d-%d. Next round, play your move.",
			verdict, last.YourMove, last.OpponentMove, v.You.Score, v.Opponent.Score)
	}
	return "Move locked in. Waiting for your opponent."
}

func renderView(v *match.View) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Match %s (%s, best of %d): %s\n", v.MatchID, v.Mode, v.BestOf, v.State)
	fmt.Fprintf(&b, "Score: you %d, opponent %d", v.You.Score, v.Opponent.Score)
	if v.You.CurrentRoundMove != "" {
		b.WriteString("\nYour move is in.")
	}
	if v.Opponent.CurrentRoundMoveHidden {
		b.WriteString("\nOpponent has moved.")
	}
	if v.Deadline != nil {
		fmt.Fprintf(&b, "\nRound deadline: %s", v.Deadline.Format("15:04:05"))
	}
	return b.String()
}

func renderStats(name string, sv *stats.View) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d played, %d won, %d lost, %d drawn (%.0f%%)\n",
		name, sv.GamesPlayed, sv.GamesWon, sv.GamesLost, sv.GamesDrawn, sv.WinRatePct)
	fmt.Fprintf(&b, "Rating %d (%s)", sv.Rating, sv.RankLabel)
	if sv.CurrentWinStreak > 1 {
		fmt.Fprintf(&b, ", on a %d game win streak", sv.CurrentWinStreak)
	}
	if sv.MostPlayedMove != "" {
		fmt.Fprintf(&b, "\nFavourite move: %s", sv.MostPlayedMove)
	}
	return b.String()
}

func renderRecent(playerID string, sums []match.Summary) string {
	if len(sums) == 0 {
		return "No finished matches yet."
	}
	var b strings.Builder
	b.WriteString("Recent matches:")
	for _, s := range sums {
		verdict := "draw"
		switch s.WinnerID {
		case playerID:
			verdict = "won"
		case "":
		default:
			verdict = "lost"
		}
		you, opp := s.P1Score, s.P2Score
		if s.Player2 == playerID {
			you, opp = opp, you
		}
		fmt.Fprintf(&b, "\n%s  %s %d-%d (best of %d)",
			s.CompletedAt.Format("Jan 2 15:04"), verdict, you, opp, s.BestOf)
	}
	return b.String()
}
