package reconcile

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FieldKind names the record field a conflict is about.
type FieldKind string

const (
	FieldEmployees FieldKind = "employees"
	FieldLocation  FieldKind = "location"
	FieldRevenue   FieldKind = "revenue"
)

// Choice is the outcome of a conflict resolution.
type Choice int

const (
	// ChoiceCurrent keeps the value already on the record.
	ChoiceCurrent Choice = iota + 1
	// ChoiceCandidate replaces it with the competing value.
	ChoiceCandidate
)

// ConflictResolver decides between two competing values for a field.
// Implementations may block (the console resolver waits for operator input).
type ConflictResolver interface {
	Resolve(ctx context.Context, kind FieldKind, company string, current, candidate any) (Choice, error)
}

// ConsoleResolver prompts the operator on each conflict and blocks until a
// valid answer is given.
type ConsoleResolver struct {
	In  io.Reader
	Out io.Writer
}

// Resolve prints both values and loops until the operator enters 1 or 2.
func (r *ConsoleResolver) Resolve(_ context.Context, kind FieldKind, company string, current, candidate any) (Choice, error) {
	fmt.Fprintf(r.Out, "\nConflicting %s data found for %s:\n", kind, company)
	fmt.Fprintf(r.Out, "Current data: %s\n", prettyJSON(current))
	fmt.Fprintf(r.Out, "New data: %s\n", prettyJSON(candidate))

	scanner := bufio.NewScanner(r.In)
	for {
		fmt.Fprint(r.Out, "Enter 1 for current data or 2 for new data: ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return 0, eris.Wrap(err, "reconcile: read operator choice")
			}
			return 0, eris.New("reconcile: input closed before a choice was made")
		}
		switch strings.TrimSpace(scanner.Text()) {
		case "1":
			zap.L().Info("operator kept current data", zap.String("company", company), zap.String("field", string(kind)))
			return ChoiceCurrent, nil
		case "2":
			zap.L().Info("operator chose new data", zap.String("company", company), zap.String("field", string(kind)))
			return ChoiceCandidate, nil
		}
		fmt.Fprintln(r.Out, "Invalid choice. Please enter 1 or 2.")
	}
}

func prettyJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
