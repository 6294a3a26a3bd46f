package domain

// Outcome is the successful result of one dispatched call. Failure
// classifications (permission denied, application error, server error)
// travel as errors, see errors.go.
type Outcome interface {
	outcome()
}

// TextResult is the literal response body of a successful call with no
// download indicator.
type TextResult struct {
	Body string
}

func (TextResult) outcome() {}

// DownloadReady signals that the server has prepared (or is preparing) a
// file for retrieval at URL. SuggestedName is the server-proposed file
// name, already defaulted when the server sent none.
type DownloadReady struct {
	URL           string
	SuggestedName string
}

func (DownloadReady) outcome() {}

// SessionState is the persistable part of a session: the authenticated
// identity and the opaque credential material issued by the server.
// Invariant: credential material present implies identity present.
type SessionState struct {
	Identity string
	Cookies  []Cookie
}

// Cookie is one piece of server-issued credential material. The client
// treats it as opaque; only name and value are replayed.
type Cookie struct {
	Name  string
	Value string
}
