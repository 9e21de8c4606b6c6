package router

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/wayfind-dev/wayfind/pkg/deferred"
)

// RevalidateHeader on a redirecting Response forces a full revalidation of
// the navigation that follows the redirect.
const RevalidateHeader = "X-Wayfind-Revalidate"

// Response is an HTTP-response-like result a loader or action can return
// (or return as its error). A status in the 300s with a Location header is
// treated as a redirect.
type Response struct {
	Status int
	Header http.Header
	Body   any
}

// NewResponse builds a Response with an initialized header map.
func NewResponse(status int, body any) *Response {
	return &Response{Status: status, Header: make(http.Header), Body: body}
}

// Error allows a *Response to travel through a loader's error return.
func (r *Response) Error() string {
	return fmt.Sprintf("response: %d %s", r.Status, http.StatusText(r.Status))
}

// Redirect is a control-flow result instructing the router to restart
// navigation at Location. It is not an error, but implements error so
// loaders and actions can surface it through either return value.
type Redirect struct {
	Status   int
	Location string

	// Revalidate forces a full revalidation of the next navigation.
	Revalidate bool
}

// Error implements the error interface.
func (r *Redirect) Error() string {
	return fmt.Sprintf("redirect: %d to %s", r.Status, r.Location)
}

// NewRedirect builds a 302 redirect to location.
func NewRedirect(location string) *Redirect {
	return &Redirect{Status: http.StatusFound, Location: location}
}

// NewRedirectWithStatus builds a redirect with an explicit 3xx status.
func NewRedirectWithStatus(location string, status int) *Redirect {
	return &Redirect{Status: status, Location: location}
}

// resultType tags a dataResult.
type resultType int

const (
	resultData resultType = iota
	resultDeferred
	resultRedirect
	resultError
)

// dataResult is the engine-internal closed union over loader/action
// outcomes. Exactly the fields implied by typ are meaningful.
type dataResult struct {
	typ resultType

	data    any
	status  int
	headers http.Header

	deferredData *deferred.Data

	redirect *Redirect

	err error
}

func errorResult(err error) dataResult {
	return dataResult{typ: resultError, err: err}
}

// convertResult interprets a loader/action return pair into a dataResult.
// Redirects and responses are recognized through either the value or the
// error channel.
func convertResult(value any, err error) dataResult {
	if err != nil {
		var redirect *Redirect
		if errors.As(err, &redirect) {
			return dataResult{typ: resultRedirect, redirect: redirect}
		}
		var resp *Response
		if errors.As(err, &resp) {
			return convertResponse(resp, true)
		}
		return errorResult(err)
	}

	switch v := value.(type) {
	case *Redirect:
		return dataResult{typ: resultRedirect, redirect: v}
	case *Response:
		return convertResponse(v, false)
	case *deferred.Data:
		return dataResult{typ: resultDeferred, deferredData: v}
	default:
		return dataResult{typ: resultData, data: v}
	}
}

// convertResponse maps a Response to a redirect, error, or data result.
// thrown marks responses surfaced through the error channel, which always
// convert to boundary errors unless they redirect.
func convertResponse(resp *Response, thrown bool) dataResult {
	if resp.Status >= 300 && resp.Status < 400 {
		if location := resp.Header.Get("Location"); location != "" {
			revalidate := false
			if raw := resp.Header.Get(RevalidateHeader); raw != "" {
				revalidate, _ = strconv.ParseBool(raw)
			}
			return dataResult{typ: resultRedirect, redirect: &Redirect{
				Status:     resp.Status,
				Location:   location,
				Revalidate: revalidate,
			}}
		}
	}
	if thrown {
		return errorResult(&RouteError{
			Status:     resp.Status,
			StatusText: http.StatusText(resp.Status),
			Data:       resp.Body,
		})
	}
	return dataResult{typ: resultData, data: resp.Body, status: resp.Status, headers: resp.Header}
}

// findRedirect returns the redirect to honor among a result list ordered
// shallow to deep: the deepest one wins.
func findRedirect(results []dataResult) *Redirect {
	for i := len(results) - 1; i >= 0; i-- {
		if results[i].typ == resultRedirect {
			return results[i].redirect
		}
	}
	return nil
}
