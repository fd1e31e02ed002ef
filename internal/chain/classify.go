package chain

import (
	"context"
	"errors"
	"strings"

	"github.com/flemzord/chaingate/internal/tool"
)

// classification maps error text fragments to codes. Order matters: the
// first match wins.
var classification = []struct {
	code     tool.Code
	patterns []string
}{
	{tool.CodeInsufficientFunds, []string{"insufficient funds", "insufficient lamports", "no record of a prior credit"}},
	{tool.CodeFeeCalculation, []string{"fee"}},
	{tool.CodeBlockchain, []string{"blockhash", "rpc", "custom program error", "transaction simulation failed"}},
}

// Classify translates a raw collaborator error into a typed tool error.
// Existing *tool.Error values and deadline errors pass through unchanged
// so the runtime can still report TIMEOUT.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var te *tool.Error
	if errors.As(err, &te) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}

	msg := strings.ToLower(err.Error())
	for _, c := range classification {
		for _, p := range c.patterns {
			if strings.Contains(msg, p) {
				return tool.Wrap(c.code, err)
			}
		}
	}
	return tool.Wrap(tool.CodeExecution, err)
}
