// Package testutil provides in-memory onramp sources and offramp sinks for
// exercising a runtime without sockets or files.
//
//	src := testutil.NewFeedSource(16)
//	sink := testutil.NewMemorySink()
//	// register both under test-only types, run the runtime, then
//	src.Feed <- []byte(`{"n":1}`)
//	require.Eventually(t, func() bool { return sink.Len() == 1 }, time.Second, 10*time.Millisecond)
package testutil
