package mqtt

// FrameSink publishes raw strip frames (packed RGB) at QoS 0. Frames are
// skipped while disconnected.
type FrameSink struct {
	client Client
	topic  string
}

// NewFrameSink creates a sink publishing to topic.
func NewFrameSink(client Client, topic string) *FrameSink {
	return &FrameSink{client: client, topic: topic}
}

func (s *FrameSink) Write(frame []byte) error {
	if !s.client.IsConnected() {
		return nil
	}
	return s.client.Publish(s.topic, 0, false, frame)
}
