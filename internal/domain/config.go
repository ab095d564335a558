package domain

// KeyPrefix namespaces every key this subsystem writes, so the RAG engine
// coexists with the rest of the archive's data in the same store.
const KeyPrefix = "haqnow:rag:"
