// Package backend owns access to the container runtime.
//
// Ownership boundary:
// - Backend contract shared by every broker session
// - Docker Engine API driver (default)
// - docker CLI driver over tools.CommandRunner
// - runtime record mapping into protocol.ImageInfo/ContainerInfo
//
// Every Backend implementation is safe for concurrent use.
package backend
