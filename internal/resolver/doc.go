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

// Package resolver finds the Open Graph image of a GitHub repository.
//
// Resolution runs in two steps:
//
//  1. When an API client is configured, the GraphQL API is asked for the
//     repository's openGraphImageUrl. This path is best-effort: any failure is
//     recorded in Resolution.API and the resolver moves on.
//  2. Otherwise, or after a failed API attempt, the public repository page is
//     downloaded and the first <meta property="og:image"> tag is read.
//
// Errors carry errdefs codes: INVALID_INPUT for URLs that do not name a
// GitHub repository and RESOLUTION_FAILED when neither path yields an image.
// There are no retries at this layer.
package resolver
