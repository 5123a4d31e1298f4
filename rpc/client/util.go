package client

import (
	"fmt"

	"github.com/resqcache/resq/lib/cache"
	"github.com/resqcache/resq/rpc/common"
	"github.com/resqcache/resq/rpc/serializer"
	"github.com/resqcache/resq/rpc/transport"
)

// rpcClientAdapter is a struct that stores all data needed for an implementation of an RPC client
// Used by the rpcCache with composition pattern
type rpcClientAdapter struct {
	cacheID    uint64
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// invokeRPCRequest is a helper function used by the RPC client to send requests
// It takes a cache ID, a request message, a transport layer and a serializer as parameters
// It returns a response message and an error if any occurs
// This method also checks if the response is an error response and if the type of the response is the expected type
// Typed cache errors (carrying a RetCode) are reconstructed so that cache.IsCode
// works the same for remote caches as for local ones
func invokeRPCRequest(cacheID uint64, req *common.Message, transport transport.IRPCClientTransport, serializer serializer.IRPCSerializer) (*common.Message, error) {
	// Serialize the request
	reqBytes, err := serializer.Serialize(*req)
	if err != nil {
		return nil, err
	}

	// Send the request
	respBytes, err := transport.Send(cacheID, reqBytes)
	if err != nil {
		return nil, err
	}

	// Deserialize the response
	resp := &common.Message{}
	err = serializer.Deserialize(respBytes, resp)
	if err != nil {
		return nil, fmt.Errorf("RPC ICacheAdapter - Error: %s", err)
	}

	// Check if the response is an error response
	if resp.MsgType == common.MsgTError || resp.Err != "" {
		// Reconstruct typed cache errors from the transported return code
		if resp.Code != 0 {
			return nil, cache.NewError(cache.RetCode(resp.Code), resp.Err)
		}
		return nil, fmt.Errorf("RPC ICacheAdapter - Error: %s", resp.Err)
	}

	// Check if the type of the response is the expected type
	if resp.MsgType != req.MsgType {
		return nil, fmt.Errorf("RPC ICacheAdapter - Unexpected message type: %s, expected %s", resp.MsgType, req.MsgType)
	}

	// Return the response
	return resp, nil
}
