// Package services wraps the collaborators the tracker talks to over process or network boundaries.
//
// # Download Engine
//
// [Engine] is the black-box downloader. [YTDLP] implements it by running the yt-dlp binary:
// [YTDLP.Probe] reads metadata with --dump-single-json, [YTDLP.Download] fetches the media,
// extracts audio and streams typed [models.Event] values parsed from a progress template.
//
// # API Client
//
// [APIService] is the HTTP client used by the CLI to talk to a running server. When a token is
// configured requests carry it as a bearer token through an oauth2 static token source.
//
// # Error Handling
//
// Services use sentinel errors from the shared package:
//   - [shared.ErrProbeFailed] : metadata could not be read
//   - [shared.ErrDownloadFailed] : the engine exited with an error
//   - [shared.ErrAPIRequest] : the server answered with a non-success status
//   - [shared.ErrNotFound] : the server answered 404
package services
