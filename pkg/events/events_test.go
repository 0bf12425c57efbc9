package events

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/tools/record"

	networkv1 "github.com/jiayi-1994/zstack-macpool/api/v1"
)

func TestRecorderEvents(t *testing.T) {
	fake := record.NewFakeRecorder(10)
	r := NewRecorderFromEventRecorder(fake, "macpool-controller")
	assert.Equal(t, "macpool-controller", r.Component())

	mp := &networkv1.MacPool{ObjectMeta: metav1.ObjectMeta{Name: "tenant-a"}}
	r.PoolReady(mp, 256)
	r.RangeEmpty(mp, "01:00:00:00:00:00", "01:00:00:00:00:ff")
	r.MACReleaseFailed(mp, "00:1a:4a:00:00:00", errors.New("cannot release excluded MAC 00:1a:4a:00:00:00"))

	assert.Equal(t, "Normal PoolReady MAC pool ready with 256 addresses", <-fake.Events)
	assert.Equal(t, "Warning RangeEmpty MAC range 01:00:00:00:00:00-01:00:00:00:00:ff contains no unicast address", <-fake.Events)
	assert.Equal(t, "Warning MACReleaseFailed Failed to release MAC address 00:1a:4a:00:00:00: cannot release excluded MAC 00:1a:4a:00:00:00", <-fake.Events)
}
