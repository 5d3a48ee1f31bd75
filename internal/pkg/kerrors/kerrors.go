package kerrors

// Коды ошибок ядра Linux, используемые как коды результата анализа
const (
	EPERM   int64 = 1  // Operation not permitted (cd .. above root)
	ENOENT  int64 = 2  // No such file or directory
	ENOMEM  int64 = 12 // Out of memory
	EEXIST  int64 = 17 // File exists (duplicate child)
	ENOTDIR int64 = 20 // Not a directory
	EINVAL  int64 = 22 // Invalid argument (malformed line)
	EFBIG   int64 = 27 // File too large (body limit, size overflow)

	ENOMEM_NEG int64 = -ENOMEM // Out of memory (negative)
	EINVAL_NEG int64 = -EINVAL // Invalid argument (negative)
)

// Neg turns an errno into the negative form written on the wire.
func Neg(code int64) int64 {
	if code > 0 {
		return -code
	}
	return code
}
