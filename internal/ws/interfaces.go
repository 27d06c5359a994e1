package ws

type WSClient interface {
	Enqueue(msg []byte) bool
	Done() <-chan struct{}
}

type WSHub interface {
	Register(c WSClient)
	Unregister(c WSClient)
	Broadcast(data []byte) int
}
