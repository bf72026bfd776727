package domain

// KeyPrefix namespaces every evidex key in the shared store.
const KeyPrefix = "evidex:"
