// SPDX-License-Identifier: LGPL-3.0-or-later

package protocols

// Registry maps a message.type URI to the Handler that processes it,
// falling back to store-and-forward for anything unrecognized (spec
// §4.6).
type Registry struct {
	handlers map[string]Handler
	fallback Handler
}

// NewRegistry builds the dispatch table for every protocol this
// mediator understands.
func NewRegistry() *Registry {
	return &Registry{
		handlers: map[string]Handler{
			trustPingType:            handleTrustPing,
			forwardType:              handleForward,
			statusRequestType:        handleStatusRequest,
			deliveryRequestType:      handleDeliveryRequest,
			messagesReceivedType:     handleMessagesReceived,
			liveDeliveryChangeType:   handleLiveDeliveryChange,
			adminManagementType:      handleAdminManagement,
			globalACLManagementType:  handleGlobalACLManagement,
			oobDiscoveryType:         handleOOBDiscovery,
			problemReportType:        handleProblemReport,
		},
		fallback: handleStoreForward,
	}
}

// Lookup returns the handler registered for messageType, or the
// store-and-forward default when none matches.
func (r *Registry) Lookup(messageType string) Handler {
	if h, ok := r.handlers[messageType]; ok {
		return h
	}
	return r.fallback
}
