package domain

// StreamStatusStarted is the only stream status value recognized explicitly;
// other status values are ignored.
const StreamStatusStarted = "started"
