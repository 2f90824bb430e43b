package provider

import (
	"github.com/jmalloc/twelf/src/twelf"
)

func logHit(
	logger twelf.Logger,
	fingerprint string,
	h *Handle,
	buffered int,
) {
	if !logger.IsDebug() {
		return
	}

	logger.Debug(
		"%s handed out prefetched database %s (%s), %d left",
		fingerprint,
		h.Name(),
		h.ID(),
		buffered,
	)
}

func logMiss(
	logger twelf.Logger,
	fingerprint string,
	inFlight int,
) {
	if !logger.IsDebug() {
		return
	}

	logger.Debug(
		"%s has no prefetched database, preparing synchronously (%d in flight)",
		fingerprint,
		inFlight,
	)
}

func logScheduled(
	logger twelf.Logger,
	fingerprint string,
	scheduled int,
	missing int,
) {
	if !logger.IsDebug() || missing == 0 {
		return
	}

	logger.Debug(
		"%s scheduled %d of %d prefetch tasks",
		fingerprint,
		scheduled,
		missing,
	)
}

func logQueueFull(
	logger twelf.Logger,
	fingerprint string,
) {
	logger.Log(
		"%s could not schedule prefetch task, worker queue is full",
		fingerprint,
	)
}

func logPrefetchFailed(
	logger twelf.Logger,
	fingerprint string,
	err error,
) {
	logger.Log(
		"%s prefetch failed: %s",
		fingerprint,
		err,
	)
}

func logDiscarded(
	logger twelf.Logger,
	fingerprint string,
	h *Handle,
	err error,
) {
	if err != nil {
		logger.Log(
			"%s could not release surplus database %s: %s",
			fingerprint,
			h.Name(),
			err,
		)
		return
	}

	if !logger.IsDebug() {
		return
	}

	logger.Debug(
		"%s released surplus database %s",
		fingerprint,
		h.Name(),
	)
}
