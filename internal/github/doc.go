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

// Package github provides the two GitHub transports used to find a
// repository's Open Graph image.
//
// The API client posts a GraphQL query through go-github, authenticated with a
// bearer token:
//
//	query($owner:String!, $name:String!){
//	  repository(owner:$owner, name:$name){ openGraphImageUrl }
//	}
//
// The page client downloads the public repository page so the og:image meta
// tag can be read from it. Both send a desktop browser user agent and carry a
// 20 second timeout by default.
//
// Example usage:
//
//	api, err := github.NewAPIClient(token)
//	if err != nil {
//	    return err
//	}
//	imageURL, err := api.OpenGraphImageURL(ctx, repo.Identity{Owner: "octocat", Name: "Hello-World"})
//
//	pages := github.NewPageClient()
//	html, err := pages.RepositoryPage(ctx, id)
//
// Neither client retries. Callers that need a fallback decide what to do with
// the returned error.
package github
