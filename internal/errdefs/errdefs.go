// MIT License
//
// Copyright (c) 2025 Mike Lane
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package errdefs defines the error kinds surfaced to callers of the resolver
// and fetcher, and maps them onto HTTP statuses for the web layer.
package errdefs

import (
	"fmt"
	"net/http"

	"github.com/jmgilman/go/errors"
)

const (
	// CodeInvalidInput marks a URL that cannot be parsed into an owner/name
	// pair, or that does not point at the expected host.
	CodeInvalidInput = errors.CodeInvalidInput

	// CodeResolutionFailed marks a repository for which no Open Graph image
	// could be found by any strategy.
	CodeResolutionFailed errors.ErrorCode = "RESOLUTION_FAILED"

	// CodeRateLimited marks an image CDN that kept answering 429 past the
	// retry budget.
	CodeRateLimited = errors.CodeRateLimit

	// CodeDownloadFailed marks any other unsuccessful download: HTTP error,
	// network error or I/O error while writing the cache file.
	CodeDownloadFailed errors.ErrorCode = "DOWNLOAD_FAILED"
)

// InvalidInput returns an INVALID_INPUT error with the given message.
func InvalidInput(format string, args ...interface{}) error {
	return errors.Newf(CodeInvalidInput, format, args...)
}

// ResolutionFailed returns a RESOLUTION_FAILED error. cause may be nil.
func ResolutionFailed(cause error, message string) error {
	if cause == nil {
		return errors.New(CodeResolutionFailed, message)
	}
	return errors.Wrap(cause, CodeResolutionFailed, message)
}

// RateLimited returns a RATE_LIMIT_EXCEEDED error for imageURL after the
// given number of attempts. The message tells the user how to get the image
// without this service.
func RateLimited(imageURL string, attempts int) error {
	err := errors.New(CodeRateLimited,
		"GitHub rate-limited the image CDN (429). Try again shortly, or use "+
			"'Open image URL' and save it directly in your browser.")
	err = errors.WithContext(err, "url", imageURL)
	return errors.WithContext(err, "attempts", attempts)
}

// DownloadFailed wraps cause as a DOWNLOAD_FAILED error. cause may be nil.
func DownloadFailed(cause error, format string, args ...interface{}) error {
	if cause == nil {
		return errors.Newf(CodeDownloadFailed, format, args...)
	}
	return errors.Wrapf(cause, CodeDownloadFailed, format, args...)
}

// Is reports whether err carries the given code.
func Is(err error, code errors.ErrorCode) bool {
	return err != nil && errors.GetCode(err) == code
}

// Message renders err for display: the message of the outermost structured
// error followed by its cause, without the code prefix.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var platformErr errors.PlatformError
	if !errors.As(err, &platformErr) {
		return err.Error()
	}
	if cause := platformErr.Unwrap(); cause != nil {
		return fmt.Sprintf("%s: %v", platformErr.Message(), cause)
	}
	return platformErr.Message()
}

// HTTPStatus maps an error onto the status the web layer should answer with.
// Rate limiting gets its own status so clients can tell it apart from other
// client errors.
func HTTPStatus(err error) int {
	switch errors.GetCode(err) {
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeInvalidInput, CodeResolutionFailed, CodeDownloadFailed:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Response is the JSON body written for failed API requests.
type Response struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ToResponse converts err into a Response.
func ToResponse(err error) Response {
	resp := errors.ToJSON(err)
	if resp == nil {
		return Response{}
	}
	return Response{Error: Message(err), Code: resp.Code}
}
