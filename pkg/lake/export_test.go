package lake

// PutAttempts exposes putAttempts to external tests.
const PutAttempts = putAttempts
