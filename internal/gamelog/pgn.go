package gamelog

import (
    "fmt"
    "strconv"
    "strings"
    "time"

    "github.com/paga2004/robochess/internal/domain"
)

const standardStart = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// BuildPGN renders the game from its SAN list. Games set up from a custom FEN carry
// SetUp/FEN headers and are numbered from the FEN's move counter.
func BuildPGN(g *domain.ChessGame) string {
    if g == nil {
        return ""
    }
    result := g.Result
    if result == "" {
        result = "*"
    }
    date := g.EndedAt
    if date.IsZero() {
        date = time.Now()
    }

    var b strings.Builder
    b.WriteString("[Event \"Robochess\"]\n")
    b.WriteString("[Site \"Robochess board\"]\n")
    b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
    b.WriteString("[White \"White\"]\n")
    b.WriteString("[Black \"Black\"]\n")
    b.WriteString(fmt.Sprintf("[Result \"%s\"]\n", result))
    start := strings.TrimSpace(g.StartFEN)
    custom := start != "" && start != standardStart
    if custom {
        b.WriteString("[SetUp \"1\"]\n")
        b.WriteString(fmt.Sprintf("[FEN \"%s\"]\n", start))
    }
    if m := strings.TrimSpace(g.Method); m != "" {
        b.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", m))
    }
    b.WriteString("\n")

    number, blackFirst := 1, false
    if custom {
        number, blackFirst = fenCounters(start)
    }
    for i, san := range g.MovesSAN {
        white := (i%2 == 0) != blackFirst
        switch {
        case white:
            b.WriteString(fmt.Sprintf("%d. ", number))
        case i == 0:
            b.WriteString(fmt.Sprintf("%d... ", number))
        }
        b.WriteString(strings.TrimSpace(san))
        b.WriteString(" ")
        if !white {
            number++
        }
    }
    b.WriteString(result)
    return b.String()
}

func fenCounters(fen string) (int, bool) {
    fields := strings.Fields(fen)
    number := 1
    if len(fields) >= 6 {
        if n, err := strconv.Atoi(fields[5]); err == nil && n > 0 {
            number = n
        }
    }
    return number, len(fields) >= 2 && fields[1] == "b"
}

