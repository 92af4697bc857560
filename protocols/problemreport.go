// SPDX-License-Identifier: LGPL-3.0-or-later

package protocols

import "context"

const problemReportType = "https://didcomm.org/report-problem/2.0/problem-report"

// handleProblemReport implements spec §4.6's problem-report row: the
// mediator never answers a problem report of its own, it only routes
// one through to its named recipient like any other addressed message.
func handleProblemReport(ctx context.Context, deps *Deps, in HandlerInput) (*Response, error) {
	if len(in.Message.To) == 0 {
		// No recipient to route to; drop silently rather than storing an
		// orphaned report nobody can fetch.
		return &Response{}, nil
	}
	return &Response{Deliver: &Delivery{
		RecipientDID: in.Message.To[0],
		FromDID:      in.Message.From,
		Blob:         in.RawBytes,
		ExpiresTime:  in.Message.ExpiresTime,
	}}, nil
}
