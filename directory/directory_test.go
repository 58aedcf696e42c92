package directory

import (
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
)

// TestDirectoryConsistency covers spec.md §8 invariant 5: the directory's
// value for a suffix equals the set of addresses currently
// created-but-not-deleted matching the gn1/tn1 prefix.
func TestDirectoryConsistency(t *testing.T) {
	d := New()
	addrA := "gn1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqabcdef"
	addrB := "gn1wwwwwwwwwwwwwwwwwwwwwwwwwwwwwwwwwwwwwwwwwwwwwwwwwwwwwwwabcdef"

	d.handleEvent(createdEvent(addrA))
	require.True(t, d.Has(addrA))
	require.ElementsMatch(t, []string{addrA}, d.Lookup("abcdef"))

	d.handleEvent(createdEvent(addrB))
	require.ElementsMatch(t, []string{addrA, addrB}, d.Lookup("abcdef"))

	d.handleEvent(deletedEvent(addrA))
	require.False(t, d.Has(addrA))
	require.ElementsMatch(t, []string{addrB}, d.Lookup("abcdef"))

	d.handleEvent(deletedEvent(addrB))
	require.Empty(t, d.Lookup("abcdef"))
}

func TestIgnoresUnrecognizedQueuePrefix(t *testing.T) {
	d := New()
	d.handleEvent(createdEvent("other-queue-abcdef"))
	require.Empty(t, d.Lookup("abcdef"))
}

func TestEmptyLookupMeansUnknown(t *testing.T) {
	d := New()
	require.Empty(t, d.Lookup("nosuch"))
}

func createdEvent(queue string) amqp.Delivery {
	return amqp.Delivery{RoutingKey: routingKeyCreated, Headers: amqp.Table{"queue": queue}}
}

func deletedEvent(queue string) amqp.Delivery {
	return amqp.Delivery{RoutingKey: routingKeyDeleted, Headers: amqp.Table{"queue": queue}}
}
