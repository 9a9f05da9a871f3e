// Copyright 2025 The Previewd Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package server is the web front end of the thumbnail downloader.
//
// It is a thin layer over the resolver and the fetcher:
//
//	GET  /              form asking for a repository URL
//	POST /              resolve repo_url and show the image with a download link
//	GET  /save          fetch ?img_url= for ?owner=&repo= and send it as an attachment
//	GET  /api/og        resolve ?url= and answer {"owner","repo","image_url","source"}
//	GET  /static/...    embedded stylesheet
//	GET  /healthz       liveness probe
//
// Error bodies on /save and /api/og are JSON {"error","code"}. A rate-limited
// image CDN answers 429 so clients can tell it from other client errors; the
// other error kinds answer 400.
//
// Every client (by remote IP) gets 10 requests per second by default; the
// limit does not apply to /healthz or /static.
package server
