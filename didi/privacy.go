package didi

// PrivacyPolicyHTML is the privacy policy page linked from the capture extension listing.
const PrivacyPolicyHTML = `<!DOCTYPE html>
<html lang="es">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Política de privacidad – Didi Food Capture</title>
  <style>
    body { font-family: system-ui, -apple-system, sans-serif; line-height: 1.6; max-width: 42rem; margin: 0 auto; padding: 1.5rem; color: #1a1a1a; }
    h1 { font-size: 1.5rem; margin-top: 0; }
    h2 { font-size: 1.1rem; margin-top: 1.5rem; }
    p, ul { margin: 0.5rem 0; }
    ul { padding-left: 1.5rem; }
    .updated { color: #666; font-size: 0.9rem; }
  </style>
</head>
<body>
  <h1>Política de privacidad – Didi Food Capture</h1>
  <p class="updated">Extensión de uso interno para el equipo de Salchimonster. Última actualización: febrero 2026.</p>

  <h2>1. Finalidad única</h2>
  <p>Didi Food Capture es una extensión de uso interno para el equipo de Salchimonster. Su única finalidad es capturar en didi-food.com (con sesión iniciada del usuario) las respuestas de las APIs de Didi Food (órdenes del día e información de la tienda seleccionada) y enviarlas de forma segura al servidor de reportes de la empresa (restaurant.reports.salchimonster.com), para mantener actualizado el mapa de órdenes y el estado de conexión de cada sede.</p>
  <p>No recopila datos personales del usuario más allá de lo que Didi ya muestra en la página. No vende ni comparte datos con terceros.</p>

  <h2>2. Datos que se envían al servidor</h2>
  <p>La extensión envía al servidor de la empresa únicamente:</p>
  <ul>
    <li>Información de la tienda (shopId, shopName y datos similares que devuelve la API de Didi) para el heartbeat de conexión.</li>
    <li>Datos de órdenes del día (dailyOrders) que la propia página de Didi ya solicita y muestra al usuario.</li>
  </ul>
  <p>No se envían credenciales, contraseñas ni datos que el usuario no tenga ya visibles en la interfaz de Didi Food.</p>

  <h2>3. Permiso de almacenamiento (storage)</h2>
  <p>El permiso <strong>storage</strong> (chrome.storage.sync) se utiliza exclusivamente para guardar la URL del backend configurada por el usuario en el popup de la extensión (por defecto https://restaurant.reports.salchimonster.com). Así cada instalación puede apuntar al mismo servidor de la empresa sin hardcodear la URL.</p>
  <p>No se almacenan datos personales ni de navegación; solo esta preferencia de configuración.</p>

  <h2>4. Código remoto</h2>
  <p>La extensión <strong>no ejecuta código remoto dinámico</strong>: no carga scripts desde URLs externas ni evalúa código descargado. La única comunicación con un servidor remoto es mediante peticiones HTTP POST (fetch) desde el service worker hacia el backend de la empresa, enviando únicamente los datos que el usuario ya tiene abiertos en didi-food.com. No se inyecta ni se ejecuta código procedente del servidor.</p>

  <h2>5. Permisos de host</h2>
  <ul>
    <li><strong>https://didi-food.com/* y https://b.didi-food.com/*</strong>: la extensión solo actúa cuando el usuario está en la web de Didi Food; es necesario para capturar las respuestas de las APIs (getShopByID, dailyOrders, getShops, newOrders) que la propia página de Didi ya solicita. Sin estos permisos la extensión no podría cumplir su función.</li>
    <li><strong>https://restaurant.reports.salchimonster.com/* y localhost (puertos 8000, 8009)</strong>: la extensión envía los datos capturados al servidor de reportes de la empresa (o a un servidor local en desarrollo). El usuario puede cambiar la URL del backend en el popup. No se envían datos a otros dominios.</li>
  </ul>

  <h2>6. Cumplimiento de políticas</h2>
  <p>El uso de datos de esta extensión cumple las Políticas del Programa para Desarrolladores de Chrome: la extensión solo envía al servidor de la empresa los datos que el usuario ya tiene visibles en didi-food.com. No se recopilan ni almacenan datos personales más allá de lo necesario para este fin; no se venden ni comparten con terceros; no se usa para publicidad ni tracking. Es de uso interno para el equipo de Salchimonster.</p>

  <h2>7. Contacto</h2>
  <p>Para consultas sobre esta política o la extensión Didi Food Capture, utiliza el correo de contacto indicado en la ficha de la extensión en la Chrome Web Store o el canal de soporte interno de Salchimonster.</p>
</body>
</html>
`
