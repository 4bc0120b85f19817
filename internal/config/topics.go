package config

const (
	// TopicCommand is the NSQ topic carrying validated slash-command and
	// interactive-button job envelopes.
	TopicCommand = "slash.command"

	// TopicUtility is the NSQ topic for utility jobs with pollable status,
	// such as bulk data-entry ingestion.
	TopicUtility = "slash.utility"

	// ChannelWorker is the consumer channel shared by all worker instances.
	ChannelWorker = "worker"
)
