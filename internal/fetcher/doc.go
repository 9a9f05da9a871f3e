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

// Package fetcher downloads Open Graph images and keeps them in a flat cache
// directory, one file per repository.
//
// Cache files are named {owner}-{name}-opengraph.{ext}. Any file with that
// prefix is a cache hit, no matter how old it is or which URL it came from;
// nothing in this package deletes or refreshes it.
//
// Downloads:
//   - send browser-like headers, a Referer pointing at the repository page and
//     no-cache directives
//   - retry 429 answers with exponential backoff (1s, 2s, 4s, ... plus up to
//     350ms jitter), 5 retries by default, then fail with RATE_LIMIT_EXCEEDED
//   - fail immediately with DOWNLOAD_FAILED on any other non-2xx status,
//     network error or write error
//   - stream the body to a temporary file in 8KB chunks and rename it into
//     place, so a failed transfer never looks like a cache hit
//
// Concurrent Fetch calls for the same repository inside one process share a
// single download. Separate processes writing the same cache directory can
// still race; the last rename wins.
package fetcher
