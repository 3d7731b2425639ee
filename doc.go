package kmz

// This package defines the output artifact of the KMZ generator: an
// accumulated KML document of placemarks and fan ground-overlays, and the
// compressed archive bundling that document with the photos it references.
// Batches are driven by the operations/assemble package.
