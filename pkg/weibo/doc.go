// Package weibo is the HTTP client for the m.weibo.cn container feed and its
// media CDN.
//
// FetchPage requests one page of a profile feed and decodes it as generic
// JSON, because post objects appear at varying depths inside cards. Failures
// are classified so the crawler can decide what to do with them:
//
//   - errors.ErrorTypeNetwork: connection, TLS or timeout problems that may go
//     away by themselves
//   - errors.ErrorTypeAuthoritative: a non-2xx answer from the service, with the
//     status in Code and a body preview in Message
//   - errors.ErrorTypeParsing: a 2xx answer whose body is not JSON
//
// Download and Stream fetch media with the same session headers. Stream
// copies in bounded chunks and gives up when the connection stalls for longer
// than the video timeout.
package weibo
