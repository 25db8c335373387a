// Package errors implements the failure taxonomy shared by onramps,
// operators and pipelines.
//
// # Failure kinds
//
//   - ErrConfig: construction-time, fatal. A component that returns it never starts.
//   - ErrPreprocess, ErrDecode: per message. Logged, the message is skipped.
//   - ErrAppend: durable write failed. The event is not forwarded.
//   - ErrReplay: a logged entry could not be deserialized.
//   - ErrDelivery (ErrMailboxFull, ErrMailboxClosed): per destination, non-fatal.
//
// Errors are tagged with Mark and given context with Wrap:
//
//	if err := store.Insert(key, buf); err != nil {
//	    return errors.WrapTransient(errors.Mark(err, errors.ErrAppend),
//	        "wal", "OnEvent", "append")
//	}
//
// Wrapping follows "component.method: action failed: cause".
//
// # Classification
//
// Every error falls into one of three classes. Transient errors may be
// retried (see RetryConfig and pkg/retry), Invalid errors drop one input and
// processing continues, Fatal errors stop the component:
//
//	switch errors.Classify(err) {
//	case errors.ErrorFatal:
//	    return err
//	case errors.ErrorInvalid:
//	    logger.Warn("dropping message", "error", err)
//	}
//
// Kind maps an error onto a short metric label.
package errors
