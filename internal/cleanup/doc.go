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

// Package cleanup removes cached Open Graph images on request.
//
// Nothing in the server ever expires a cached image: a cached file is served
// until someone deletes it. This package is that someone, driven by the
// "ogthumb prune" command.
//
// Selection rules:
//   - only regular files that look like cache entries ("*-opengraph.*") or
//     leftover partial downloads are considered
//   - when an identity is given, only that repository's file is considered
//   - when an age is given, only files last modified before now-age are removed
//   - with DryRun set, matches are reported but nothing is deleted
//
// Example usage:
//
//	pruner := cleanup.NewPruner("downloads")
//	removed, err := pruner.Prune(ctx, cleanup.Options{OlderThan: 30 * 24 * time.Hour})
//	if err != nil {
//		return err
//	}
package cleanup
