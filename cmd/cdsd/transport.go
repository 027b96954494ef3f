package main

import (
	"encoding/binary"
	"fmt"
	"io"
	"net/http"

	"github.com/privatecds/sealedcore/internal/aeadcrypto"
	"github.com/privatecds/sealedcore/internal/cdstypes"
	"github.com/privatecds/sealedcore/internal/reqcodec"
	"github.com/privatecds/sealedcore/internal/server"
)

// Wire layout for a /call request body (all integers little-endian):
//
//	request_data          [aeadcrypto.KeySize]byte
//	query_iv              [aeadcrypto.IvSize]byte
//	query_mac             [aeadcrypto.MacSize]byte
//	query_commitment      [32]byte
//	query_phone_count     uint32
//	ratelimit_state_uuid  [16]byte  (all-zero => absent)
//	ratelimit_state_size  uint32
//	query_size            uint32
//	ratelimit_state_data  ratelimit_state_size bytes
//	query_data            query_size bytes
const callHeaderSize = aeadcrypto.KeySize + aeadcrypto.IvSize + aeadcrypto.MacSize + 32 + 4 + 16 + 4 + 4

func readBody(req *http.Request) ([]byte, error) {
	defer req.Body.Close()
	return io.ReadAll(req.Body)
}

// writeResponse sends a raw octet-stream response with permissive CORS,
// matching the style used across this demo harness's handlers.
func writeResponse(resp []byte, w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(resp)
}

func writeError(w http.ResponseWriter, err error) {
	status := cdstypes.AsStatus(err)
	w.Header().Set("X-Cds-Status", fmt.Sprintf("%d", status))
	w.WriteHeader(http.StatusUnprocessableEntity)
	w.Write([]byte(status.String()))
}

// decodeCallRequest parses the /call wire envelope into the CallArgs and
// request key that internal/reqcodec expects, plus the raw ratelimit-state
// slab (so the transport can echo it back, mutated, on the ratelimit path).
func decodeCallRequest(body []byte) (*reqcodec.CallArgs, []byte, []byte, error) {
	if len(body) < callHeaderSize {
		return nil, nil, nil, cdstypes.NewError(cdstypes.StatusErrInvalidRequestSize)
	}
	off := 0
	requestData := append([]byte(nil), body[off:off+aeadcrypto.KeySize]...)
	off += aeadcrypto.KeySize

	var iv aeadcrypto.Iv
	copy(iv.Data[:], body[off:off+aeadcrypto.IvSize])
	off += aeadcrypto.IvSize

	var mac aeadcrypto.Mac
	copy(mac.Data[:], body[off:off+aeadcrypto.MacSize])
	off += aeadcrypto.MacSize

	var commitment [32]byte
	copy(commitment[:], body[off:off+32])
	off += 32

	phoneCount := binary.LittleEndian.Uint32(body[off : off+4])
	off += 4

	var uuidBytes [16]byte
	copy(uuidBytes[:], body[off:off+16])
	off += 16

	ratelimitSize := binary.LittleEndian.Uint32(body[off : off+4])
	off += 4

	querySize := binary.LittleEndian.Uint32(body[off : off+4])
	off += 4

	if len(body) != off+int(ratelimitSize)+int(querySize) {
		return nil, nil, nil, cdstypes.NewError(cdstypes.StatusErrInvalidRequestSize)
	}
	ratelimitData := body[off : off+int(ratelimitSize)]
	off += int(ratelimitSize)
	queryData := body[off : off+int(querySize)]

	args := &reqcodec.CallArgs{
		QueryData:          queryData,
		QueryIV:            iv,
		QueryMAC:           mac,
		QueryCommitment:    commitment,
		QueryPhoneCount:    phoneCount,
		RatelimitStateUUID: cdstypes.UuidFromBytes(uuidBytes),
		RatelimitStateData: ratelimitData,
	}
	return args, requestData, ratelimitData, nil
}

// decodeStopRequest parses the /terminate wire envelope:
//
//	in_phone_count uint32
//	in_phones      in_phone_count*8 bytes
//	in_uuids       in_phone_count*16 bytes
func decodeStopRequest(body []byte) (server.StopArgs, error) {
	if len(body) < 4 {
		return server.StopArgs{}, cdstypes.NewError(cdstypes.StatusErrInvalidRequestSize)
	}
	count := int(binary.LittleEndian.Uint32(body[:4]))
	rest := body[4:]
	if len(rest) != count*cdstypes.BytesPerPhone+count*cdstypes.BytesPerUUID {
		return server.StopArgs{}, cdstypes.NewError(cdstypes.StatusErrInvalidRequestSize)
	}
	phones := rest[:count*cdstypes.BytesPerPhone]
	uuids := rest[count*cdstypes.BytesPerPhone:]
	return server.StopArgs{InPhones: phones, InUUIDs: uuids, InPhoneCount: count}, nil
}

// httpCaller bridges a parked sealed-core request to the HTTP goroutine
// handling it: HandleCall may reply synchronously (ratelimit path, decode
// errors) or asynchronously from a later Terminate call (batch path). Either
// way the HTTP handler just blocks on replyCh.
type httpCaller struct {
	replyCh chan callOutcome
}

type callOutcome struct {
	data []byte
	err  error
}

func newHTTPCaller() *httpCaller {
	return &httpCaller{replyCh: make(chan callOutcome, 1)}
}

func (c *httpCaller) Reply(data []byte) error {
	c.replyCh <- callOutcome{data: data}
	return nil
}

func (c *httpCaller) ReplyError(err error) error {
	c.replyCh <- callOutcome{err: err}
	return nil
}
